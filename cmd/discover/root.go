package discover

import (
	"fmt"
	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/lib/discovery"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strings"
	"text/tabwriter"
)

// DiscoverCmd lists the query servers announced via mDNS
var DiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List query servers in the local network",
	Long:  `List the query servers that announce themselves via mDNS (started with serve --mdns). The printed DSN can be used with the query and shell commands.`,
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := util.BindCommandFlags(cmd); err != nil {
			return err
		}
		return util.InitLogging()
	},
	RunE: run,
}

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "wait"
	DiscoverCmd.Flags().Duration(key, discovery.DefaultTimeout, util.WrapString("How long to listen for announcements"))
}

func run(cmd *cobra.Command, _ []string) error {
	endpoints, err := discovery.Lookup(cmd.Context(), viper.GetDuration("wait"))
	if err != nil && len(endpoints) == 0 {
		return err
	}
	if len(endpoints) == 0 {
		fmt.Println("no servers found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tADDRESS\tTRANSPORT\tDATABASES\tDSN")
	for _, ep := range endpoints {
		dsn := "-"
		if len(ep.Databases) > 0 {
			dsn = fmt.Sprintf("dql://%s/%s?transport=%s", ep.Address, ep.Databases[0], ep.Transport)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			ep.Instance, ep.Address, ep.Transport, strings.Join(ep.Databases, ","), dsn)
	}
	return w.Flush()
}

package util

import (
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/serializer"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/url"
	"strconv"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds DQL_<FLAG> environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dql")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.InheritedFlags())
}

// InitLogging configures the package loggers with the log-level flag
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// GetSerializer creates the serializer selected by the serializer and
// compression flags
func GetSerializer() (serializer.IRPCSerializer, error) {
	s, err := serializer.New(
		viper.GetString("serializer"),
		serializer.Compression(viper.GetString("compression")),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid serializer settings: %w", err)
	}
	return s, nil
}

// SetupClientFlags adds the connection flags of the client commands
func SetupClientFlags(cmd *cobra.Command) {
	key := "dsn"
	cmd.PersistentFlags().String(key, "dql://localhost:8080/default", WrapString("The data source name of the database (dql://host:port/db, dql:mem, dql:mdns/db), properties like fetchSize can be appended as query parameters"))

	key = "fetch-size"
	cmd.PersistentFlags().Int(key, 0, WrapString("Rows per batch, overrides the fetchSize of the dsn (0 keeps it)"))
}

// GetDSN returns the dsn flag, a fetch-size flag overrides the fetchSize
// property of the dsn
func GetDSN() string {
	dsn := viper.GetString("dsn")
	fetchSize := viper.GetInt("fetch-size")
	if fetchSize <= 0 {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		// left to the driver to report
		return dsn
	}
	query := u.Query()
	query.Set("fetchSize", strconv.Itoa(fetchSize))
	u.RawQuery = query.Encode()
	return u.String()
}

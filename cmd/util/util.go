package util

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/objstore/lib/common"
	"github.com/ValentinKolb/objstore/lib/store/datastore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
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

// SetupStoreFlags adds the flags that configure the local data store to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "dir"
	cmd.PersistentFlags().String(key, "data", WrapString("The directory of the data store, created if it does not exist"))

	key = "txn-timeout-ms"
	cmd.PersistentFlags().Int64(key, datastore.DefaultTxnTimeout.Milliseconds(), WrapString("Maximum age of a transaction in milliseconds, also bounds lock waits"))

	key = "allocation-size"
	cmd.PersistentFlags().Int64(key, datastore.DefaultAllocationSize, WrapString("Number of object ids added to a free block per extension (rounded down to a power of two)"))

	key = "free-block-size"
	cmd.PersistentFlags().Int64(key, datastore.DefaultFreeBlockSize, WrapString("Size of an object id block, only used when the store is created"))

	key = "cache-size"
	cmd.PersistentFlags().Int64(key, datastore.DefaultCacheSize, WrapString("Size of the engine cache in bytes"))

	key = "flush-to-disk"
	cmd.PersistentFlags().Bool(key, false, WrapString("Flush every commit to disk before returning"))

	key = "log-stats"
	cmd.PersistentFlags().Int64(key, 0, WrapString("Log statistics every n transactions (0 disables it)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("objstore")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetStoreConfig reads the data store configuration from viper
func GetStoreConfig() datastore.Config {
	return datastore.Config{
		Directory:      viper.GetString("dir"),
		TxnTimeout:     time.Duration(viper.GetInt64("txn-timeout-ms")) * time.Millisecond,
		AllocationSize: viper.GetInt64("allocation-size"),
		FreeBlockSize:  viper.GetInt64("free-block-size"),
		CacheSize:      viper.GetInt64("cache-size"),
		FlushToDisk:    viper.GetBool("flush-to-disk"),
		LogStats:       viper.GetInt64("log-stats"),
	}
}

// OpenStore binds the flags of cmd, sets up the loggers and opens the data store
func OpenStore(cmd *cobra.Command) (*datastore.Store, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return nil, err
	}
	return datastore.New(GetStoreConfig())
}

// CloseStore shuts the data store down, waiting at most timeout for open transactions
func CloseStore(ds *datastore.Store, timeout time.Duration) error {
	if ds == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ok, err := ds.Shutdown(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("data store still has open transactions after %s", timeout)
	}
	return nil
}

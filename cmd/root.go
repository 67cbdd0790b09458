/*
	Copyright 2023 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	migrateCmd "github.com/mpapenbr/portion-tracker-go/pkg/cmd/migrate"
	recordsCmd "github.com/mpapenbr/portion-tracker-go/pkg/cmd/records"
	serverCmd "github.com/mpapenbr/portion-tracker-go/pkg/cmd/server"
	"github.com/mpapenbr/portion-tracker-go/pkg/config"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/gsheet"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/sqlite"
	"github.com/mpapenbr/portion-tracker-go/pkg/store/impl/xlsx"
	"github.com/mpapenbr/portion-tracker-go/version"
)

const envPrefix = "PTR"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "ptrack",
	Short:   "Daily nutrition portion tracker",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:funlen // flag definitions
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.ptrack.yml)")

	rootCmd.PersistentFlags().StringVar(&config.Store, "store",
		string(xlsx.StoreTypeXlsx),
		"record store to use (xlsx, sqlite, gsheet, postgres, memory)")
	rootCmd.PersistentFlags().StringVar(&config.XlsxFile, "xlsx-file",
		xlsx.DefaultFile,
		"spreadsheet file of the xlsx store")
	rootCmd.PersistentFlags().StringVar(&config.XlsxSheet, "xlsx-sheet",
		xlsx.DefaultSheet,
		"sheet within the spreadsheet file")
	rootCmd.PersistentFlags().StringVar(&config.SqliteFile, "sqlite-file",
		sqlite.DefaultFile,
		"database file of the sqlite store")
	rootCmd.PersistentFlags().StringVar(&config.GsheetID, "gsheet-id",
		"",
		"id of the google spreadsheet")
	rootCmd.PersistentFlags().StringVar(&config.GsheetTab, "gsheet-tab",
		gsheet.DefaultTab,
		"tab within the google spreadsheet")
	rootCmd.PersistentFlags().StringVar(&config.GsheetCredentials, "gsheet-credentials",
		"",
		"service account credentials file (application default credentials if empty)")
	rootCmd.PersistentFlags().StringVar(&config.DB, "db",
		"postgresql://DB_USERNAME:DB_USER_PASSWORD@DB_HOST:5432/ptrack",
		"Connection string for the database")
	rootCmd.PersistentFlags().BoolVar(&config.Migrate, "migrate",
		false,
		"apply database migrations when the postgres store is opened")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"15s",
		"Duration to wait for other services to be ready")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules, e.g. 'debug:web,tracker *:store.*'")

	// add commands here
	rootCmd.AddCommand(serverCmd.NewServerCmd())
	rootCmd.AddCommand(recordsCmd.NewRecordsCmd())
	rootCmd.AddCommand(migrateCmd.NewMigrateCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// .ptrack.yml in $HOME or the working directory
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ptrack")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindCommandTree(rootCmd, viper.GetViper())
}

func bindCommandTree(cmd *cobra.Command, v *viper.Viper) {
	bindFlags(cmd, v)
	for _, sub := range cmd.Commands() {
		bindCommandTree(sub, v)
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// --xlsx-file is read from PTR_XLSX_FILE
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// explicit flags win over config file and env
		if !f.Changed && v.IsSet(f.Name) {
			val := fmt.Sprintf("%v", v.Get(f.Name))
			if f.Value.Type() == "stringSlice" {
				val = strings.Join(v.GetStringSlice(f.Name), ",")
			}
			if err := cmd.Flags().Set(f.Name, val); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}

package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dkazmin/tileharvest/internal/model"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tileharvest",
	Short: "Tileharvest - satellite image chips for verified conflict events",
	Long: `Tileharvest downloads a GeoJSON feed of verified conflict-event markers,
filters it by year and category, requests a processed Sentinel-2 image
chip around each matching location from the Copernicus Dataspace, and
publishes the event metadata plus imagery as rows in an Airtable base.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tileharvest v0.2.1")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.tileharvest/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads the .env file, the config file, and TILEHARVEST_* env vars
func initConfig() {
	// Credentials commonly live in a local .env during development
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.tileharvest")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("TILEHARVEST")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// buildConfig assembles the run configuration: defaults, then config
// file values, then credentials from the environment.
func buildConfig() *model.Config {
	cfg := model.DefaultConfig()

	setString := func(dst *string, key string) {
		if v := viper.GetString(key); v != "" {
			*dst = v
		}
	}

	setString(&cfg.Data.Dir, "data.dir")
	setString(&cfg.Feed.URL, "feed.url")
	setString(&cfg.Feed.Category, "feed.category")
	if v := viper.GetInt("feed.year"); v != 0 {
		cfg.Feed.Year = v
	}

	setString(&cfg.Copernicus.AuthURL, "copernicus.auth_url")
	setString(&cfg.Copernicus.ProcessURL, "copernicus.process_url")
	setString(&cfg.Copernicus.CollectionID, "copernicus.collection_id")
	if v := viper.GetInt("copernicus.window_days"); v != 0 {
		cfg.Copernicus.WindowDays = v
	}
	if v := viper.GetInt("copernicus.max_cloud_coverage"); v != 0 {
		cfg.Copernicus.MaxCloudCoverage = v
	}
	if v := viper.GetFloat64("copernicus.buffer_km"); v != 0 {
		cfg.Copernicus.BufferKM = v
	}

	setString(&cfg.Airtable.TableName, "airtable.table_name")
	setString(&cfg.Log.Level, "log.level")
	setString(&cfg.Log.Format, "log.format")

	if verbose {
		cfg.Log.Level = "debug"
	}

	// Credentials come from the environment (or .env), never the config file
	cfg.Copernicus.Username = os.Getenv("COPERNICUS_USER")
	cfg.Copernicus.Password = os.Getenv("COPERNICUS_PASSWORD")
	cfg.Airtable.APIKey = os.Getenv("AIRTABLE_API_KEY")
	cfg.Airtable.BaseID = os.Getenv("AIRTABLE_BASE_ID")
	if v := os.Getenv("AIRTABLE_TABLE_NAME"); v != "" {
		cfg.Airtable.TableName = v
	}
	cfg.Summary.APIKey = os.Getenv("OPENAI_API_KEY")

	return cfg
}

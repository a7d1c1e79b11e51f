// Command sagemaker-vision runs image classification and object detection
// against an AWS SageMaker endpoint, either one-shot from the command line
// or as a long-running HTTP service.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fpang/sagemaker-vision/internal/logging"
)

// ConfigEnv names the environment variable used when --config is not set.
const ConfigEnv = "VISION_CONFIG"

// Persistent flags
var (
	configFlag  string
	timeoutFlag string
)

// rootCmd is the main Cobra command for the sagemaker-vision CLI.
var rootCmd = &cobra.Command{
	Use:   "sagemaker-vision",
	Short: "Classify and detect objects in images with a SageMaker endpoint",
	Long: `sagemaker-vision sends images to an AWS SageMaker inference endpoint
(JumpStart image classification or object detection models) and prints the
ranked classifications or the detected objects with pixel bounding boxes.

The endpoint, region and credentials file are read from an attributes file
(YAML, JSON or TOML) given with --config or the VISION_CONFIG variable.
A .env file in the working directory is loaded first if present.

Examples:
  sagemaker-vision validate -c vision.yaml
  sagemaker-vision classify -c vision.yaml -i dog.jpg -n 3
  sagemaker-vision detect -c vision.yaml --camera front -o json
  sagemaker-vision serve -c vision.yaml --addr :8080`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
		if configFlag == "" {
			configFlag = os.Getenv(ConfigEnv)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Attributes file (.yaml, .yml, .json or .toml); defaults to $"+ConfigEnv)
	rootCmd.PersistentFlags().StringVar(&timeoutFlag, "timeout", "", "Per-request timeout (e.g. 5s); overrides request_timeout")

	rootCmd.AddCommand(validateCmd, classifyCmd, detectCmd, serveCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"github.com/keihibot/keihi/internal/config"
	"github.com/keihibot/keihi/internal/drive"
	"github.com/keihibot/keihi/internal/googleapi"
	"github.com/keihibot/keihi/internal/settings"
	"github.com/keihibot/keihi/internal/sheet"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration and connectivity",
	Long: `Verify configuration and connectivity: environment variables, Google
credentials, the settings spreadsheet, the Drive root folder and the Slack
bot token. Exits nonzero when anything fails.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	failed := false
	report := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Printf("FAIL %s: %v\n", name, err)
			return
		}
		fmt.Printf("  ok %s\n", name)
	}

	cfg, err := config.Load()
	report("configuration", err)
	if err != nil {
		os.Exit(ExitConfigError)
	}

	clients, err := googleapi.NewClients(ctx, cfg.GoogleCredentials, cfg.OCREnabled)
	report("google credentials", err)
	if err != nil {
		os.Exit(ExitConfigError)
	}

	sheetAPI := sheet.NewAPI(clients.Sheets)
	report("settings spreadsheet", checkSettingsSheet(ctx, sheetAPI, cfg.SettingsSpreadsheetID))

	driveAPI := drive.NewAPI(clients.Drive)
	_, err = driveAPI.ListChildren(ctx, cfg.DriveRootFolderID)
	report("drive root folder", err)

	slackAPI := slack.New(cfg.SlackBotToken, slack.OptionAppLevelToken(cfg.SlackAppToken))
	resp, err := slackAPI.AuthTestContext(ctx)
	report("slack auth", err)
	if err == nil {
		fmt.Printf("       bot user: %s (%s)\n", resp.User, resp.Team)
	}

	if failed {
		os.Exit(ExitConfigError)
	}
	fmt.Println("all checks passed")
	return nil
}

// checkSettingsSheet verifies the settings spreadsheet is reachable and
// carries the user_settings worksheet.
func checkSettingsSheet(ctx context.Context, api sheet.API, spreadsheetID string) error {
	infos, err := api.SheetList(ctx, spreadsheetID)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if info.Title == settings.SheetTitle {
			return nil
		}
	}
	return fmt.Errorf("worksheet %q not found", settings.SheetTitle)
}

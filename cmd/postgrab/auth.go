package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"postgrab/pkg/auth"
	"postgrab/pkg/models"
	"postgrab/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored platform sessions",
	Long: `Manage browser sessions used to fetch logged-in post pages.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file (set POSTGRAB_SESSION_KEY)
  - Environment variables (POSTGRAB_<PLATFORM>_COOKIE, read-only)

To capture a session, log into the platform in your browser, open
Developer Tools, and copy the Cookie header from any request.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set <platform>",
	Short: "Store a session cookie for a platform",
	Example: `  # Prompted, input hidden
  postgrab auth set instagram

  postgrab auth set threads`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

var authClearCmd = &cobra.Command{
	Use:   "clear <platform>",
	Short: "Remove the stored session for a platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthClear,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authClearCmd)
}

func parsePlatform(arg string) (models.Platform, error) {
	switch strings.ToLower(arg) {
	case "threads":
		return models.PlatformThreads, nil
	case "instagram":
		return models.PlatformInstagram, nil
	case "facebook":
		return models.PlatformFacebook, nil
	case "twitter", "x":
		return models.PlatformTwitter, nil
	default:
		return models.PlatformUnknown, fmt.Errorf("unknown platform %q (threads, instagram, facebook, twitter)", arg)
	}
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	platform, err := parsePlatform(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Cookie header for %s (input hidden): ", platform)
	cookieBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read cookie: %w", err)
	}

	fmt.Print("User-Agent (optional, Enter for default): ")
	reader := bufio.NewReader(os.Stdin)
	userAgent, _ := reader.ReadString('\n')

	session := &auth.Session{
		Platform:     platform,
		Cookie:       strings.TrimSpace(string(cookieBytes)),
		UserAgent:    strings.TrimSpace(userAgent),
		LastModified: time.Now().UTC(),
	}

	manager := auth.NewManager(nil)
	if err := manager.Set(session); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Session stored for %s", platform))
	return nil
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	platform, err := parsePlatform(args[0])
	if err != nil {
		return err
	}
	manager := auth.NewManager(nil)
	if err := manager.Delete(platform); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Session cleared for %s", platform))
	return nil
}

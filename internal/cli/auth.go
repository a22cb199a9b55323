package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcloud"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// authCmd represents the auth command group.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage pCloud authentication",
	Long:  `Authenticate PulsePoint with pCloud, or check/revoke an existing login.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with pCloud",
	Long: `Log in to pCloud with a username and password, obtained from
--username/--password or PULSEPOINT_USERNAME/PULSEPOINT_PASSWORD, and save
the resulting auth token. There is no interactive prompt: both values must
be supplied.`,
	RunE: runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check pCloud authentication status",
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved pCloud auth token",
	RunE:  runAuthLogout,
}

func init() {
	authLoginCmd.Flags().String("username", "", "pCloud username (email)")
	authLoginCmd.Flags().String("password", "", "pCloud password")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	if username == "" {
		username = os.Getenv("PULSEPOINT_USERNAME")
	}
	if password == "" {
		password = os.Getenv("PULSEPOINT_PASSWORD")
	}
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required (--username/--password or PULSEPOINT_USERNAME/PULSEPOINT_PASSWORD)")
	}

	region := pcloud.Region(viper.GetString("region"))
	c := pcloud.NewClient(pcloud.ClientConfig{Region: region, Logger: logger})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := c.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := saveToken(token); err != nil {
		return fmt.Errorf("failed to save auth token: %w", err)
	}

	fmt.Printf("✅ Authenticated as %s (region %s)\n", username, region)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		fmt.Println("❌ Not authenticated")
		fmt.Println("   Run 'pulsepoint auth login' to authenticate")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	info, err := c.AccountInfo(ctx)
	if err != nil {
		fmt.Println("⚠️  Saved token is no longer valid")
		fmt.Println("   Run 'pulsepoint auth login' to re-authenticate")
		return nil
	}

	fmt.Println("✅ Authenticated with pCloud")
	fmt.Printf("👤 Account: %s\n", info.Email)
	usedGB := float64(info.UsedQuota) / (1 << 30)
	totalGB := float64(info.Quota) / (1 << 30)
	fmt.Printf("💾 Storage: %.2f GB / %.2f GB used\n", usedGB, totalGB)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	if err := clearToken(); err != nil {
		return fmt.Errorf("failed to remove auth token: %w", err)
	}
	fmt.Println("✅ Logged out")
	return nil
}

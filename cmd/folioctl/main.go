package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "folioctl",
	Short: "Tapfolio CLI",
	Long: `folioctl is the command-line interface for a Tapfolio server.

It signs in with an emailed one-time code, then reads and writes your
profile through the same HTTP API the web client uses.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".folioctl"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.folioctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Tapfolio server URL (default http://localhost:8080)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(meCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(versionCmd)
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

func call(method, path, token string, body any) (int, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}
	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func savedToken() string {
	return viper.GetString("token")
}

func requireToken() (string, error) {
	t := savedToken()
	if t == "" {
		return "", fmt.Errorf("not signed in; run: folioctl login <email>")
	}
	return t, nil
}

func saveConfig(token string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".folioctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	viper.Set("token", token)
	viper.Set("server_url", serverURL)
	return viper.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}

func printJSON(data []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(out.String())
}

// ── login ────────────────────────────────────────────────────────────────────

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in with an emailed one-time code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		status, body, err := call(http.MethodPost, "/api/v1/auth/otp", "", map[string]string{"email": email})
		if err != nil {
			return err
		}
		if status != http.StatusAccepted {
			return fmt.Errorf("request code: %s", string(body))
		}

		fmt.Printf("A sign-in code was sent to %s.\nCode: ", email)
		reader := bufio.NewReader(os.Stdin)
		code, _ := reader.ReadString('\n')

		status, body, err = call(http.MethodPost, "/api/v1/auth/otp/verify", "", map[string]string{
			"email": email,
			"code":  strings.TrimSpace(code),
		})
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("verify code: %s", string(body))
		}

		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
			return fmt.Errorf("no token in response")
		}
		if err := saveConfig(resp.Token); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
		fmt.Println("Signed in.")
		return nil
	},
}

// ── profile ──────────────────────────────────────────────────────────────────

var getCmd = &cobra.Command{
	Use:   "get <handle>",
	Short: "Fetch the public profile for a handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, body, err := call(http.MethodGet, "/api/v1/profiles/"+args[0], "", nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("fetch profile: %s", string(body))
		}
		printJSON(body)
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Fetch your own profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}
		status, body, err := call(http.MethodGet, "/api/v1/profile/me", token, nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("fetch profile: %s", string(body))
		}
		printJSON(body)
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <profile.json>",
	Short: "Save your profile from a JSON file",
	Long: `Save reads a profile JSON document and writes it as your profile.

The document uses the same field names the API serves, for example:

  {"username": "alice", "display_name": "Alice", "phone": "+1555", "phone_public": true}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		status, body, err := call(http.MethodPost, "/api/v1/profile/save", token, doc)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("save: %s", string(body))
		}
		printJSON(body)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete-account",
	Short: "Permanently delete your account and profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}

		fmt.Print("This permanently deletes your account. Type the word delete to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "delete" {
			fmt.Println("Aborted.")
			return nil
		}

		status, body, err := call(http.MethodPost, "/api/v1/account/delete", token, nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("delete: %s", string(body))
		}
		fmt.Println("Account deleted.")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the folioctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("folioctl", version)
	},
}

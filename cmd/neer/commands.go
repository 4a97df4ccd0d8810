package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arivoli/neer/internal/config"
)

// --- districts ---

var districtsCmd = &cobra.Command{
	Use:   "districts",
	Short: "List districts or show one district's data",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			resp, err := client.get(cmd.Context(), "/districts")
			if err != nil {
				return err
			}
			var result struct {
				Districts []string `json:"districts"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			for _, name := range result.Districts {
				fmt.Println(name)
			}
			return nil
		}

		name := strings.Join(args, " ")
		resp, err := client.get(cmd.Context(), "/districts/"+url.PathEscape(name))
		if err != nil {
			return err
		}
		var detail any
		if err := decodeJSON(resp, &detail); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

// --- narrative ---

var narrativeCmd = &cobra.Command{
	Use:   "narrative <district>",
	Short: "Generate (or recall) the policy brief for a district",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/narrative", map[string]string{"district": name})
		if err != nil {
			return err
		}

		var result struct {
			Text   string `json:"text"`
			Source string `json:"source"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStep("source: %s", result.Source)
		fmt.Println(result.Text)
		return nil
	},
}

// --- dossier ---

var dossierCmd = &cobra.Command{
	Use:   "dossier <district>",
	Short: "Generate the full four-section dossier for a district",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/dossier", map[string]string{"district": name})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			var payload struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
				} `json:"error"`
			}
			if json.NewDecoder(resp.Body).Decode(&payload) == nil && payload.Error.Message != "" {
				return fmt.Errorf("%s", payload.Error.Message)
			}
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 1<<20), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var frame struct {
				Section   string            `json:"section"`
				Label     string            `json:"label"`
				Text      string            `json:"text"`
				Completed int               `json:"completed"`
				Done      bool              `json:"done"`
				FromCache bool              `json:"from_cache"`
				Sections  map[string]string `json:"sections"`
			}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
				return fmt.Errorf("bad stream frame: %w", err)
			}

			if frame.Done {
				if frame.FromCache {
					printStep("served from cache")
					for section, text := range frame.Sections {
						fmt.Printf("\n%s\n%s\n", colorize(colorBold, section), text)
					}
				}
				printSuccess("Dossier complete (%d sections)", len(frame.Sections))
				return nil
			}

			printStep("%s", frame.Label)
			fmt.Printf("\n%s\n%s\n\n", colorize(colorBold, frame.Section), frame.Text)
		}
		return scanner.Err()
	},
}

// --- advisory ---

var advisoryCmd = &cobra.Command{
	Use:   "advisory",
	Short: "Ingest or list department advisories",
}

var advisoryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Store an advisory for use in dossier prompts",
	Long: `Store an advisory for use in dossier prompts.

Examples:
  neer advisory add --text "Maize subsidy window extended to March" --crop Maize
  neer advisory add --url https://agritech.tnau.ac.in/circular --crop Groundnut
  neer advisory add --file ./circular.txt --title "Circular 42" --crop Rice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		urlArg, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		crop, _ := cmd.Flags().GetString("crop")

		if text == "" && urlArg == "" && file == "" {
			return fmt.Errorf("one of --text, --url, or --file is required")
		}

		req := map[string]any{"title": title, "crop": crop}
		switch {
		case text != "":
			req["type"] = "text"
			req["content"] = text
		case urlArg != "":
			req["type"] = "url"
			req["url"] = urlArg
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			req["type"] = "text"
			req["content"] = string(data)
			if title == "" {
				req["title"] = file
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/advisories", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Stored advisory %s", result["id"])
		return nil
	},
}

var advisoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored advisories",
	RunE: func(cmd *cobra.Command, args []string) error {
		crop, _ := cmd.Flags().GetString("crop")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/advisories?limit=%d", limit)
		if crop != "" {
			path += "&crop=" + url.QueryEscape(crop)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var advisories []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Crop      string `json:"crop"`
			Content   string `json:"content"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &advisories); err != nil {
			return err
		}

		if len(advisories) == 0 {
			fmt.Println("No advisories found.")
			return nil
		}

		for _, a := range advisories {
			content := a.Content
			if len(content) > 80 {
				content = content[:80] + "..."
			}
			fmt.Printf("%s  %-12s  %s  %s\n",
				colorize(colorCyan, a.ID[:8]),
				a.Crop,
				a.Title,
				content,
			)
		}
		return nil
	},
}

func init() {
	advisoryAddCmd.Flags().String("text", "", "advisory text to store")
	advisoryAddCmd.Flags().String("url", "", "URL to fetch and store")
	advisoryAddCmd.Flags().String("file", "", "file path to store")
	advisoryAddCmd.Flags().String("title", "", "title for the advisory")
	advisoryAddCmd.Flags().String("crop", "", "crop the advisory applies to")
	advisoryListCmd.Flags().String("crop", "", "filter by crop")
	advisoryListCmd.Flags().Int("limit", 20, "maximum number of advisories to list")
	advisoryCmd.AddCommand(advisoryAddCmd)
	advisoryCmd.AddCommand(advisoryListCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kalambet/tresses/internal/composer"
	"github.com/kalambet/tresses/internal/config"
	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/recommend"
)

// --- recommend ---

var recommendCmd = &cobra.Command{
	Use:   "recommend <user-id>",
	Short: "Generate recommendations for a profile",
	Long: `Generate ranked recommendations for a stored profile.

Examples:
  tresses recommend amara
  tresses recommend amara --season harmattan`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		season, _ := cmd.Flags().GetString("season")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"user_id": args[0]}
		if season != "" {
			req["season"] = season
		}
		resp, err := client.post(cmd.Context(), "/recommendations", req)
		if err != nil {
			return err
		}

		var result struct {
			Recommendations []recommend.Recommendation `json:"recommendations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, result.Recommendations)
		}
		if len(result.Recommendations) == 0 {
			fmt.Fprintln(out, "No recommendations. Does the profile exist?")
			return nil
		}
		for i, r := range result.Recommendations {
			fmt.Fprintf(out, "%d. %s %s [%s, %s]\n", i+1, confidenceLabel(r.Confidence),
				colorize(colorBold, r.Title), r.Type, r.Priority)
			fmt.Fprintf(out, "   %s\n", r.Reasoning)
			if r.Attribution != "" {
				fmt.Fprintf(out, "   %s\n", r.Attribution)
			}
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().String("season", "", "current season (spring, summer, autumn, winter, harmattan, dry, rainy)")
	recommendCmd.Flags().Bool("json", false, "print raw JSON")
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the conversation engine",
	Long: `Send a message to the conversation engine and print the reply.

Examples:
  tresses chat --user amara "I have hair loss"
  tresses chat --user amara --conversation c-42 "tell me more"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		convID, _ := cmd.Flags().GetString("conversation")
		if user == "" {
			return fmt.Errorf("--user is required")
		}
		if convID == "" {
			convID = uuid.NewString()
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/conversations/"+url.PathEscape(convID)+"/messages", map[string]any{
			"user_id": user,
			"message": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		var reply composer.Response
		if err := decodeJSON(resp, &reply); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, reply.Message)
		if len(reply.Suggestions) > 0 {
			labels := make([]string, len(reply.Suggestions))
			for i, s := range reply.Suggestions {
				labels[i] = s.Label
			}
			fmt.Fprintf(out, "\n%s %s\n", colorize(colorCyan, "Next:"), strings.Join(labels, " | "))
		}
		fmt.Fprintf(out, "%s %s\n", colorize(colorBold, "conversation:"), convID)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("user", "", "profile id of the speaker")
	chatCmd.Flags().String("conversation", "", "conversation id (default: a new conversation)")
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate <text>",
	Short: "Check text for culturally insensitive wording",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/sensitivity", map[string]string{"text": strings.Join(args, " ")})
		if err != nil {
			return err
		}

		var res knowledge.SensitivityResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		if res.IsAppropriate {
			printSuccess("No concerns found")
			return nil
		}
		out := cmd.OutOrStdout()
		for i, c := range res.Concerns {
			fmt.Fprintf(out, "%s %s\n", colorize(colorYellow, "concern:"), c)
			if i < len(res.Suggestions) {
				fmt.Fprintf(out, "  %s %s\n", colorize(colorCyan, "suggestion:"), res.Suggestions[i])
			}
		}
		return fmt.Errorf("%d concern(s) found", len(res.Concerns))
	},
}

// --- practices ---

var practicesCmd = &cobra.Command{
	Use:   "practices [query]",
	Short: "List or search traditional practices",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/practices"
		if q := strings.Join(args, " "); q != "" {
			path += "?q=" + url.QueryEscape(q)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var practices []knowledge.Practice
		if err := decodeJSON(resp, &practices); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(practices) == 0 {
			fmt.Fprintln(out, "No practices found.")
			return nil
		}
		for _, p := range practices {
			fmt.Fprintf(out, "%s  %s (%s)\n", colorize(colorCyan, p.ID), p.Name, p.Origin)
		}
		return nil
	},
}

// --- attribution ---

var attributionCmd = &cobra.Command{
	Use:   "attribution <practice-id>",
	Short: "Show the attribution line for a practice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/practices/"+url.PathEscape(args[0])+"/attribution")
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result["attribution"])
		return nil
	},
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect or update user profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profiles/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var p any
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var profileSetRespectCmd = &cobra.Command{
	Use:   "set-respect <user-id> <high|medium|low>",
	Short: "Set how much traditional and cultural content a user sees",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, level := args[0], profile.RespectLevel(strings.ToLower(args[1]))
		switch level {
		case profile.RespectHigh, profile.RespectMedium, profile.RespectLow:
		default:
			return fmt.Errorf("respect level must be high, medium or low, got %q", args[1])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		// The cultural section is replaced as a whole, so read it first.
		path := "/profiles/" + url.PathEscape(id)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var p profile.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		cultural := p.Cultural
		cultural.RespectLevel = level
		resp, err = client.patch(cmd.Context(), path, profile.Patch{Cultural: &cultural})
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Set respect level for %s = %s", id, p.Cultural.RespectLevel)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetRespectCmd)
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

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a configuration value in %s.

Valid keys: %s`, config.ConfigFilePath(), strings.Join(config.ValidKeys(), ", ")),
	Args: cobra.ExactArgs(2),
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

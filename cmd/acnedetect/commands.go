package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Muhammadazeem-eng/acne-detect/internal/config"
	"github.com/Muhammadazeem-eng/acne-detect/internal/identity"
	"github.com/Muhammadazeem-eng/acne-detect/internal/profile"
	"github.com/Muhammadazeem-eng/acne-detect/internal/storage"
)

// --- signup ---

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Create an account. Missing values are prompted for; the password
and security answer are read without echo.

Examples:
  acnedetect signup --username alice --email alice@example.com --question 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		question, _ := cmd.Flags().GetInt("question")

		req, err := collectSignUp(stdin, os.Stderr, username, email, question)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.call(cmd.Context(), "POST", "/signup", req, nil); err != nil {
			return err
		}
		printSuccess("Signup successful! Run `acnedetect chat` to log in and ask the dermatologist.")
		return nil
	},
}

// collectSignUp fills in a signup form, prompting for anything not given.
// question is 1-based; 0 means ask.
func collectSignUp(r *bufio.Reader, w io.Writer, username, email string, question int) (identity.SignUpRequest, error) {
	var err error
	if username == "" {
		if username, err = promptLine(r, w, "Username: "); err != nil {
			return identity.SignUpRequest{}, err
		}
	}
	if email == "" {
		if email, err = promptLine(r, w, "Email: "); err != nil {
			return identity.SignUpRequest{}, err
		}
	}
	password, err := promptSecret(w, "Password: ")
	if err != nil {
		return identity.SignUpRequest{}, err
	}

	if question == 0 {
		for i, q := range identity.SecurityQuestions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, q)
		}
		choice, err := promptLine(r, w, "Security question: ")
		if err != nil {
			return identity.SignUpRequest{}, err
		}
		question, _ = strconv.Atoi(choice)
	}
	if question < 1 || question > len(identity.SecurityQuestions) {
		return identity.SignUpRequest{}, fmt.Errorf("security question must be between 1 and %d", len(identity.SecurityQuestions))
	}
	q := identity.SecurityQuestions[question-1]

	answer, err := promptSecret(w, q+" ")
	if err != nil {
		return identity.SignUpRequest{}, err
	}

	return identity.SignUpRequest{
		Username:         username,
		Email:            email,
		Password:         password,
		SecurityQuestion: q,
		SecurityAnswer:   answer,
	}, nil
}

func init() {
	signupCmd.Flags().String("username", "", "account username")
	signupCmd.Flags().String("email", "", "account email")
	signupCmd.Flags().Int("question", 0, "security question number (see prompt)")
}

// --- recover ---

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Recover a forgotten password",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			return fmt.Errorf("--email is required")
		}
		answer, err := promptSecret(os.Stderr, "Security answer: ")
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var result map[string]string
		if err := client.call(cmd.Context(), "POST", "/recover", map[string]string{
			"email":           email,
			"security_answer": answer,
		}, &result); err != nil {
			return err
		}
		printSuccess("Your password is: %s", result["password"])
		return nil
	},
}

func init() {
	recoverCmd.Flags().String("email", "", "email used at signup")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Check and save a skin profile",
}

var profileSetCmd = &cobra.Command{
	Use:   "set <file.json>",
	Short: "Validate and save a profile from a JSON file",
	Long: `Validate and save a profile from a JSON file with "basic", "skin" and
"lifestyle" objects. Profiles live in the server session, so the saved
profile is printed back as a summary.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading profile: %w", err)
		}
		var p profile.Profile
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("invalid profile JSON: %w", err)
		}

		username, _ := cmd.Flags().GetString("username")
		client, err := loggedInClient(cmd.Context(), username)
		if err != nil {
			return err
		}

		var saved profile.Profile
		if err := client.call(cmd.Context(), "PUT", "/profile", p, &saved); err != nil {
			return err
		}
		printSuccess("Profile saved")
		fmt.Print(profile.Summary(saved))
		return nil
	},
}

func init() {
	profileSetCmd.Flags().String("username", "", "log in as this user")
	profileCmd.AddCommand(profileSetCmd)
}

// --- contact ---

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Send a message to the team",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		message, _ := cmd.Flags().GetString("message")
		if email == "" || message == "" {
			return fmt.Errorf("--email and --message are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.call(cmd.Context(), "POST", "/contact", map[string]string{
			"email":   email,
			"message": message,
		}, nil); err != nil {
			return err
		}
		printSuccess("Thank you for contacting us! We will get back to you soon.")
		return nil
	},
}

var contactListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show received contact messages (reads the server's local database)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}

		cfg, err := config.LoadSettings()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		return printContactMessages(os.Stdout, store, limit)
	},
}

func printContactMessages(w io.Writer, store *storage.Store, limit int) error {
	msgs, err := store.ListContactMessages(limit)
	if err != nil {
		return fmt.Errorf("listing contact messages: %w", err)
	}
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No contact messages.")
		return nil
	}
	for _, m := range msgs {
		from := m.Email
		if m.Username != "" {
			from += " (" + m.Username + ")"
		}
		fmt.Fprintf(w, "%s  %s\n%s\n\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), colorize(colorBold, from), m.Message)
	}
	return nil
}

func init() {
	contactCmd.Flags().String("email", "", "your email")
	contactCmd.Flags().String("message", "", "your message")
	contactListCmd.Flags().Int("limit", 50, "maximum number of messages to show")
	contactCmd.AddCommand(contactListCmd)
}

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Analyze a face photo (JPEG or PNG) for acne",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening image: %w", err)
		}
		defer f.Close()

		username, _ := cmd.Flags().GetString("username")
		client, err := loggedInClient(cmd.Context(), username)
		if err != nil {
			return err
		}

		printStep("Analyzing %s...", filepath.Base(args[0]))
		result, err := analyzeImage(cmd.Context(), client, f, imageContentType(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	},
}

func analyzeImage(ctx context.Context, c *apiClient, img io.Reader, contentType string) (string, error) {
	resp, err := c.doRaw(ctx, "POST", "/analyze", contentType, img)
	if err != nil {
		return "", err
	}
	var result map[string]string
	if err := decodeEnvelope(resp, &result); err != nil {
		return "", err
	}
	return result["result"], nil
}

func imageContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func init() {
	analyzeCmd.Flags().String("username", "", "log in as this user")
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Talk to the AI dermatologist",
	Long: `Talk to the AI dermatologist. With a question argument, asks once and
exits; otherwise starts an interactive session. Type "exit" to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		client, err := loggedInClient(cmd.Context(), username)
		if err != nil {
			return err
		}

		if len(args) > 0 {
			reply, err := ask(cmd.Context(), client, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		}
		return chatLoop(cmd.Context(), client, stdin, os.Stdout)
	},
}

func ask(ctx context.Context, c *apiClient, question string) (string, error) {
	var result map[string]string
	if err := c.call(ctx, "POST", "/chat", map[string]string{"message": question}, &result); err != nil {
		return "", err
	}
	return result["reply"], nil
}

// chatLoop reads questions from r until EOF or "exit". Failed turns are
// reported and the loop continues.
func chatLoop(ctx context.Context, c *apiClient, r *bufio.Reader, w io.Writer) error {
	fmt.Fprintln(w, colorize(colorBold, "AI Dermatologist")+` (type "exit" to leave)`)
	for {
		line, err := promptLine(r, w, colorize(colorCyan, "you> "))
		if err == io.EOF {
			fmt.Fprintln(w)
			return nil
		}
		if err != nil {
			return err
		}
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		reply, err := ask(ctx, c, line)
		if err != nil {
			printError("%s", errorMessage(err))
			continue
		}
		fmt.Fprintf(w, "%s %s\n", colorize(colorGreen, "dermatologist>"), reply)
	}
}

func init() {
	chatCmd.Flags().String("username", "", "log in as this user")
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "List your recent analyses and chat turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		username, _ := cmd.Flags().GetString("username")

		client, err := loggedInClient(cmd.Context(), username)
		if err != nil {
			return err
		}

		items, err := listInteractions(cmd.Context(), client, limit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No interactions found.")
			return nil
		}
		for _, ix := range items {
			fmt.Println(formatInteraction(ix))
		}
		return nil
	},
}

func listInteractions(ctx context.Context, c *apiClient, limit int) ([]storage.Interaction, error) {
	var items []storage.Interaction
	path := "/interactions?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	if err := c.call(ctx, "GET", path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func formatInteraction(ix storage.Interaction) string {
	input := ix.Input
	if runes := []rune(input); len(runes) > 60 {
		input = string(runes[:60]) + "..."
	}
	status := ix.Status
	if ix.Status == storage.StatusFailed {
		status = colorize(colorRed, status)
	}
	score := ""
	switch {
	case ix.FeedbackScore > 0:
		score = " +1"
	case ix.FeedbackScore < 0:
		score = " -1"
	}
	return fmt.Sprintf("%s  %s  %-8s %-9s %s%s",
		colorize(colorCyan, ix.ID),
		ix.CreatedAt.Format("2006-01-02 15:04"),
		ix.Kind,
		status,
		input,
		score,
	)
}

func init() {
	interactionsCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	interactionsCmd.Flags().String("username", "", "log in as this user")
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback <interaction-id> <score>",
	Short: "Rate an answer: 1 (helpful), 0 (neutral) or -1 (unhelpful)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.Atoi(args[1])
		if err != nil || score < -1 || score > 1 {
			return fmt.Errorf("score must be -1, 0 or 1")
		}
		notes, _ := cmd.Flags().GetString("notes")
		username, _ := cmd.Flags().GetString("username")

		client, err := loggedInClient(cmd.Context(), username)
		if err != nil {
			return err
		}
		ix, err := sendFeedback(cmd.Context(), client, args[0], score, notes)
		if err != nil {
			return err
		}
		printSuccess("Feedback recorded")
		fmt.Println(formatInteraction(ix))
		return nil
	},
}

// sendFeedback rates interaction id and returns it as stored.
func sendFeedback(ctx context.Context, c *apiClient, id string, score int, notes string) (storage.Interaction, error) {
	var ix storage.Interaction
	err := c.call(ctx, "POST", "/interactions/"+url.PathEscape(id)+"/feedback", map[string]any{
		"score": score,
		"notes": notes,
	}, &ix)
	return ix, err
}

func init() {
	feedbackCmd.Flags().String("notes", "", "optional comment")
	feedbackCmd.Flags().String("username", "", "log in as this user")
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
		cfg, err := config.LoadSettings()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
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

var configSetAPIKeyCmd = &cobra.Command{
	Use:   "set-api-key",
	Short: "Store the OpenAI API key in the platform secret store",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := promptSecret(os.Stderr, "OpenAI API key: ")
		if err != nil {
			return err
		}
		if err := config.SetAPIKey(key); err != nil {
			return err
		}
		printSuccess("API key stored")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetAPIKeyCmd)
}

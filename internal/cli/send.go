package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/gmailconn/internal/email"
	"github.com/vijay-prabhu/gmailconn/internal/output"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message",
	Long: `Send a plain-text or HTML message as the authenticated user.

Examples:
  gmailconn send --to=jane@example.com --subject="Hi" --body="Hello there"
  gmailconn send --to=a@example.com,b@example.com --subject="Report" --body-file=report.txt
  echo "<b>done</b>" | gmailconn send --to=me@example.com --subject=Build --body-file=- --html`,
	RunE: runSend,
}

var (
	sendTo       []string
	sendCc       []string
	sendBcc      []string
	sendSubject  string
	sendBody     string
	sendBodyFile string
	sendHTML     bool
	sendThread   string
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringSliceVar(&sendTo, "to", nil, "Recipients")
	sendCmd.Flags().StringSliceVar(&sendCc, "cc", nil, "Carbon copy recipients")
	sendCmd.Flags().StringSliceVar(&sendBcc, "bcc", nil, "Blind carbon copy recipients")
	sendCmd.Flags().StringVarP(&sendSubject, "subject", "s", "", "Subject line")
	sendCmd.Flags().StringVarP(&sendBody, "body", "b", "", "Message body")
	sendCmd.Flags().StringVar(&sendBodyFile, "body-file", "", "Read the body from a file (- for stdin)")
	sendCmd.Flags().BoolVar(&sendHTML, "html", false, "Send the body as text/html")
	sendCmd.Flags().StringVar(&sendThread, "thread", "", "Thread ID to reply in")
	sendCmd.MarkFlagsMutuallyExclusive("body", "body-file")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	body, err := readBody(cmd.InOrStdin(), sendBody, sendBodyFile)
	if err != nil {
		return err
	}

	msg := email.OutgoingMessage{
		To:       sendTo,
		Cc:       sendCc,
		Bcc:      sendBcc,
		Subject:  sendSubject,
		Body:     body,
		ThreadID: sendThread,
		HTML:     sendHTML,
	}
	// Fail before authenticating
	if err := msg.Validate(); err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	msg.From, _ = s.provider.GetUserEmail(ctx)

	sent, err := s.provider.SendMessage(ctx, msg)
	if err != nil {
		return err
	}

	return output.OutputTo(cmd.OutOrStdout(), outputFmt, sent)
}

// readBody returns the inline body, or the contents of path ("-" is stdin)
func readBody(stdin io.Reader, inline, path string) (string, error) {
	if path == "" {
		return inline, nil
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}

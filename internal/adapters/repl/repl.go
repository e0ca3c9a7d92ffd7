package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"invoice-agent/internal/app"
	"invoice-agent/internal/core"
)

var errExit = errors.New("exit")

// session is the client-side conversation state. The service is stateless per
// request, so the REPL carries history and the thread id between turns.
type session struct {
	svc      app.ApplicationService
	userID   string
	threadID string
	history  []app.Message
	ctx      *app.UserContext
	out      io.Writer
	reader   *bufio.Reader
}

// Run starts the interactive REPL loop.
// It reads lines from reader, dispatches slash commands deterministically,
// and sends everything else to the agent as a chat turn.
func Run(ctx context.Context, svc app.ApplicationService, userID string, reader *bufio.Reader, out io.Writer) {
	s := &session{svc: svc, userID: userID, out: out, reader: reader}

	fmt.Fprintln(out, "Invoice Agent")
	fmt.Fprintf(out, "User: %s\n", userID)
	fmt.Fprintln(out, "Describe what you need (\"Invoice Acme 3 hours of design at 80\"), or use /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for {
		fmt.Fprint(out, "\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input != "" {
			if strings.HasPrefix(input, "/") {
				if derr := s.dispatchSlash(ctx, input); derr != nil {
					if errors.Is(derr, errExit) {
						fmt.Fprintln(out, "Goodbye!")
						return
					}
					fmt.Fprintf(out, "Error: %v\n", derr)
				}
			} else {
				s.send(ctx, input)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			return
		}
	}
}

// send runs one chat turn and appends both turns to the local history.
func (s *session) send(ctx context.Context, message string) {
	resp, err := s.svc.HandleMessage(ctx, app.ChatRequest{
		Message:     message,
		UserID:      s.userID,
		ThreadID:    s.threadID,
		History:     s.history,
		UserContext: s.ctx,
	})
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.threadID = resp.Thread.ID
	s.history = append(s.history, resp.Messages...)

	answer := ""
	if n := len(resp.Messages); n > 0 {
		answer = resp.Messages[n-1].Content
	}
	fmt.Fprintf(s.out, "\n[AI]: %s\n", answer)
	for _, a := range resp.Attachments {
		printAttachment(s.out, a)
	}
	if !resp.Success {
		fmt.Fprintln(s.out, "(the request did not complete; you can retry or rephrase)")
	}
}

func (s *session) dispatchSlash(ctx context.Context, input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "new", "reset":
		s.history = nil
		s.threadID = ""
		fmt.Fprintln(s.out, "Started a new conversation.")

	case "history":
		printHistory(s.out, s.history)

	case "classify":
		if len(args) == 0 {
			fmt.Fprintln(s.out, "Usage: /classify <message>")
			return nil
		}
		res, err := s.svc.Classify(ctx, app.ClassifyRequest{
			Message: strings.Join(args, " "),
			UserID:  s.userID,
			History: s.history,
		})
		if err != nil {
			return err
		}
		printClassification(s.out, res)

	case "next":
		kind := core.KindInvoice
		if len(args) > 0 {
			kind = core.DocumentKind(strings.ToLower(args[0]))
		}
		number, err := s.svc.NextNumber(ctx, app.NextNumberRequest{UserID: s.userID, Kind: kind})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Next %s number: %s\n", kind, number)

	case "currency":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "Usage: /currency <ISO code>")
			return nil
		}
		if s.ctx == nil {
			s.ctx = &app.UserContext{}
		}
		s.ctx.Currency = strings.ToUpper(args[0])
		fmt.Fprintf(s.out, "Currency for this session: %s\n", s.ctx.Currency)

	case "invoice":
		message, ok := invoiceWizard(s.reader, s.out)
		if ok {
			s.send(ctx, message)
		}

	case "sweep":
		n, err := s.svc.SweepOverdue(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%d invoice(s) marked overdue.\n", n)

	case "help", "h":
		printHelp(s.out)

	case "exit", "quit", "e", "q":
		return errExit

	default:
		fmt.Fprintf(s.out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

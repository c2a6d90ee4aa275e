package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lessonworks/sage/pkg/chat"
	"github.com/lessonworks/sage/pkg/config"
	"github.com/lessonworks/sage/pkg/logger"
	"github.com/lessonworks/sage/pkg/render"
)

const replyTimeout = 2 * time.Minute

// App is the interactive read-eval-print loop around one chat session.
type App struct {
	session  *chat.Session
	renderer *render.Renderer
	in       io.Reader
	out      io.Writer

	updates chan struct{}
	notices chan error
}

// RunApplication wires a session from settings and runs the REPL until EOF.
func RunApplication(settings *config.Settings) error {
	logger.Info("application starting: server=%s deployment=%s streaming=%v",
		settings.Server.URL, settings.Server.Deployment, settings.Chat.Streaming)

	session := chat.NewSession(chat.SessionConfig{
		ServerURL:    settings.Server.URL,
		DeploymentID: settings.Server.Deployment,
		Token:        settings.Server.Token,
		Streaming:    settings.Chat.Streaming,
		RestTimeout:  time.Duration(settings.Server.Timeout) * time.Second,
	})
	defer session.Close()

	app := NewApp(session, render.New(100, settings.Chat.ShowThinking), os.Stdin, os.Stdout)
	return app.Run(context.Background())
}

func NewApp(session *chat.Session, renderer *render.Renderer, in io.Reader, out io.Writer) *App {
	return &App{
		session:  session,
		renderer: renderer,
		in:       in,
		out:      out,
		updates:  make(chan struct{}, 1),
		notices:  make(chan error, 4),
	}
}

// Run reads lines until EOF or /quit, sending each as a message.
func (a *App) Run(ctx context.Context) error {
	a.session.OnUpdate(a.signalUpdate)
	a.session.OnNotice(a.signalNotice)
	a.session.Start(ctx)

	fmt.Fprintln(a.out, "Type a message and press enter. /quit or Ctrl-D exits.")

	scanner := bufio.NewScanner(a.in)
	for {
		a.drainNotices()
		fmt.Fprint(a.out, "\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		if err := a.session.Send(ctx, line); err != nil {
			fmt.Fprintln(a.out, a.renderer.Notice(err))
			continue
		}
		a.printReply(ctx)
	}

	logger.Info("application shutting down")
	return scanner.Err()
}

// printReply prints the assistant's answer to the message just sent. On the
// fallback path the reply is already in the transcript; on the streaming path
// visible text is echoed as it accumulates.
func (a *App) printReply(ctx context.Context) {
	if last, ok := a.lastMessage(); ok && last.IsAssistant() && !last.IsStreaming {
		fmt.Fprintln(a.out, a.renderer.Message(last))
		return
	}

	printed := 0
	timeout := time.NewTimer(replyTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-a.updates:
			last, ok := a.lastMessage()
			if !ok || !last.IsAssistant() {
				continue
			}
			visible := chat.ProcessThinkTags(last.Content, last.IsStreaming).Visible
			if last.IsStreaming {
				visible = withholdPartialMarker(visible)
			}
			if len(visible) > printed {
				fmt.Fprint(a.out, visible[printed:])
				printed = len(visible)
			}
			if !last.IsStreaming {
				fmt.Fprintln(a.out)
				if len(last.Sources) > 0 {
					fmt.Fprintln(a.out, "sources: "+strings.Join(last.Sources, ", "))
				}
				return
			}
		case err := <-a.notices:
			fmt.Fprintln(a.out, a.renderer.Notice(err))
			if printed == 0 {
				// The turn is not going to produce a reply
				return
			}
		case <-timeout.C:
			fmt.Fprintln(a.out, a.renderer.Notice(fmt.Errorf("timed out waiting for a reply")))
			return
		case <-ctx.Done():
			return
		}
	}
}

// withholdPartialMarker trims a trailing fragment of a think-tag opener so
// incremental echo stays monotonic. A chunk boundary inside "<think>" would
// otherwise surface as visible text and then retract once the marker
// completes, and a terminal cannot unprint it.
func withholdPartialMarker(visible string) string {
	for i := len(visible) - 1; i >= 0 && len(visible)-i < len("<think>"); i-- {
		if visible[i] != '<' {
			continue
		}
		if strings.HasPrefix("<think>", visible[i:]) {
			return visible[:i]
		}
		return visible
	}
	return visible
}

func (a *App) lastMessage() (chat.Message, bool) {
	msgs := a.session.Messages()
	if len(msgs) == 0 {
		return chat.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

func (a *App) signalUpdate() {
	select {
	case a.updates <- struct{}{}:
	default:
	}
}

func (a *App) signalNotice(err error) {
	select {
	case a.notices <- err:
	default:
	}
}

func (a *App) drainNotices() {
	for {
		select {
		case err := <-a.notices:
			fmt.Fprintln(a.out, a.renderer.Notice(err))
		default:
			return
		}
	}
}

package wallet

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"

	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

// LoopbackConnector runs the redirect half of the wallet-connect protocol:
// it listens on an ephemeral loopback port, hands the user an agent URL,
// and waits for the agent to POST the identity proof back.
type LoopbackConnector struct {
	agentURL string
	network  principal.Network

	// Prompt receives the full agent URL once the listener is up. The
	// default prints it for the user to open.
	Prompt func(agentURL string)
}

func NewLoopbackConnector(agentURL string, network principal.Network) *LoopbackConnector {
	return &LoopbackConnector{
		agentURL: agentURL,
		network:  network,
		Prompt: func(agentURL string) {
			log.Infof("open your signing agent to continue: %s", agentURL)
		},
	}
}

type connectResult struct {
	identity *Identity
	err      error
}

func (l *LoopbackConnector) Connect(ctx context.Context) (*Identity, error) {
	handshakeID := cuid2.Generate()
	transitSecret := model.CreateID()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting callback listener: %w", err)
	}

	results := make(chan connectResult, 1)

	server := echo.New()
	server.HideBanner = true
	server.HidePort = true
	server.Use(middleware.Recover())
	server.Listener = listener

	server.POST("/callback", func(c echo.Context) error {
		body := c.Request().Body
		defer body.Close()

		rawProof, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}

		identity, err := VerifyProof(string(rawProof), handshakeID, transitSecret, l.network)
		if err != nil {
			select {
			case results <- connectResult{err: err}:
			default:
			}
			return c.String(http.StatusBadRequest, err.Error())
		}

		select {
		case results <- connectResult{identity: identity}:
		default:
		}
		return c.String(http.StatusOK, "connected, you can close this window")
	})

	go func() {
		if err := server.Start(""); err != nil && err != http.ErrServerClosed {
			select {
			case results <- connectResult{err: fmt.Errorf("callback listener: %w", err)}:
			default:
			}
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	callback := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	values := url.Values{}
	values.Set("redirect_uri", callback)
	values.Set("id", handshakeID)
	values.Set("transit", transitSecret)
	l.Prompt(fmt.Sprintf("%s/connect?%s", l.agentURL, values.Encode()))

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", model.ErrorConnectAborted, ctx.Err())
	case result := <-results:
		if result.err != nil {
			return nil, result.err
		}
		return result.identity, nil
	}
}

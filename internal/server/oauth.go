package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/shared"
)

// CodeExchanger trades an authorization code for platform credentials.
type CodeExchanger func(ctx context.Context, code string) (*models.Credentials, error)

// OAuthResult is the outcome of one login callback.
type OAuthResult struct {
	Credentials *models.Credentials
	err         error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the login redirect carrying ?code and ?state.
type OAuthHandler struct {
	exchange    CodeExchanger
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler expecting state on the callback.
func NewOAuthHandler(exchange CodeExchanger, state string) *OAuthHandler {
	return &OAuthHandler{
		exchange:   exchange,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Detail}}</p>
    </div>
</body>
</html>
`))

type page struct {
	Title, Detail, Color string
}

func render(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = resultPage.Execute(w, p)
}

// ServeHTTP validates state, exchanges the code and reports the result. Only the first callback is processed.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if h.state != "" && query.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		render(w, http.StatusBadRequest, page{"Login failed", "The login response did not match this request.", "#d9534f"})
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))
		h.Send(OAuthResult{err: err})
		render(w, http.StatusBadRequest, page{"Login failed", "No authorization code was returned.", "#d9534f"})
		return
	}

	creds, err := h.exchange(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)})
		render(w, http.StatusBadGateway, page{"Login failed", "The platform did not accept the login.", "#d9534f"})
		return
	}

	h.Send(OAuthResult{Credentials: creds})
	render(w, http.StatusOK, page{"Logged in", "You can close this window and return to the terminal.", "#2e8b57"})
}

// Send sends the result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// ListenForCallback serves handler on 127.0.0.1:port until it reports a result
// or ctx ends. ready, when non-nil, is called with the bound address once the
// listener is up.
func ListenForCallback(ctx context.Context, port int, handler *OAuthHandler, logger *log.Logger, ready func(addr string)) (*models.Credentials, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for login callback: %w", err)
	}

	router := NewBasicRouter()
	router.Use(LogRequests(logger))
	router.Handler(handler)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("callback server stopped", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case res := <-handler.Result():
		if res.Error() != nil {
			return nil, res.Error()
		}
		return res.Credentials, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for login callback: %v", shared.ErrTimeout, ctx.Err())
	}
}

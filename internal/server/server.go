package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Action string

type Method string

const (
	Data Action = "data"
	Api  Action = "api"

	GET  Method = "GET"
	POST Method = "POST"
)

// Handler executes a request and returns the payload with the status code.
type Handler func(r *http.Request) ([]byte, int, error)

type Route struct {
	Action Action
	Path   string
	Method Method
	Exec   Handler
}

func (r Route) pattern() string {
	if r.Path != "" {
		return fmt.Sprintf("/%s/%s", r.Action, r.Path)
	}
	return fmt.Sprintf("/%s", r.Action)
}

type Server struct {
	name     string
	port     int
	debug    bool
	block    Block
	routes   []Route
	handlers map[string]http.Handler
	once     sync.Once
	mux      *http.ServeMux
}

func NewServer(name string, port int) *Server {
	return &Server{
		name:     name,
		port:     port,
		block:    NewBlock(),
		routes:   make([]Route, 0),
		handlers: make(map[string]http.Handler),
	}
}

// Debug sets the server to debug mode
func (s *Server) Debug() *Server {
	s.debug = true
	return s
}

// AddRoute adds the given route to the server
func (s *Server) AddRoute(method Method, action Action, path string, exec Handler) *Server {
	s.routes = append(s.routes, Route{
		Action: action,
		Path:   path,
		Method: method,
		Exec:   exec,
	})
	return s
}

// Add adds the given routes to the server
func (s *Server) Add(route ...Route) *Server {
	s.routes = append(s.routes, route...)
	return s
}

// Handle mounts a plain http handler, outside of the request block.
func (s *Server) Handle(path string, handler http.Handler) *Server {
	s.handlers[path] = handler
	return s
}

func (s *Server) handle(route Route) func(w http.ResponseWriter, r *http.Request) {
	// requests are handled one at a time
	request := fmt.Sprintf("%s %s", route.Method, route.pattern())
	return func(w http.ResponseWriter, r *http.Request) {
		if Method(r.Method) != route.Method {
			s.code(w, nil, http.StatusMethodNotAllowed)
			return
		}
		s.block.Action <- NewSignal(request).Create()
		defer func() {
			s.block.ReAction <- NewSignal(request).Create()
		}()
		b, code, err := route.Exec(r)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			s.error(w, err, code)
		} else if code != 0 && code != http.StatusOK {
			s.code(w, b, code)
		} else {
			s.respond(w, b)
		}
	}
}

func (s *Server) serve() {
	for action := range s.block.Action {
		log.Debug().
			Time("time", action.Time).
			Str("action", action.Name).
			Msg("started execution")
		reaction := <-s.block.ReAction
		log.Debug().
			Time("time", action.Time).
			Float64("duration", time.Since(action.Time).Seconds()).
			Str("reaction", reaction.Name).
			Msg("completed execution")
	}
}

// Handler returns the http handler of all routes.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() {
		go s.serve()
		s.mux = http.NewServeMux()
		for _, route := range s.routes {
			s.mux.HandleFunc(route.pattern(), s.handle(route))
		}
		for path, handler := range s.handlers {
			s.mux.Handle(path, handler)
		}
	})
	return s.mux
}

// Run starts the server and blocks until the context is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.Error().Err(err).Str("server", s.name).Msg("could not shut down server")
		}
	}()

	log.Info().Str("server", s.name).Int("port", s.port).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

func (s *Server) code(w http.ResponseWriter, b []byte, code int) {
	w.WriteHeader(code)
	s.respond(w, b)
}

func (s *Server) respond(w http.ResponseWriter, b []byte) {
	if len(b) == 0 {
		return
	}
	_, err := w.Write(b)
	if err != nil {
		log.Error().Err(err).Msg("could not write response")
	}
}

func (s *Server) error(w http.ResponseWriter, err error, code int) {
	if code == 0 || code == http.StatusOK {
		code = http.StatusInternalServerError
	}
	log.Error().Err(err).Int("code", code).Msg("error for http request")
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	s.code(w, b, code)
}

func Live() Route {
	return Route{
		Action: Data,
		Method: GET,
		Exec: func(r *http.Request) (payload []byte, code int, err error) {
			return []byte{}, http.StatusOK, nil
		},
	}
}

// JsonRead decodes the request body into v. An empty body leaves v untouched.
func JsonRead(r *http.Request, debug bool, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if debug {
		log.Info().
			Str("url", fmt.Sprintf("%+v", r.URL)).
			Str("request", r.RequestURI).
			Str("remote-address", r.RemoteAddr).
			Str("method", r.Method).
			Str("body", string(body)).
			Msg("received payload")
	}
	if len(body) > 0 {
		err = json.Unmarshal(body, v)
		if err != nil {
			return err
		}
	}
	return nil
}

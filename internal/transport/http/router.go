package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"masquerade/internal/broadcast"
	"masquerade/internal/game"
	"masquerade/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(reg *game.Registry, st *store.SessionStore, bc *broadcast.Broadcaster) *chi.Mux {
	rooms := NewRoomHandlers(reg, st, bc)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", rooms.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Route("/rooms/{room_id}", func(r chi.Router) {
			r.Post("/join", rooms.Join())
			r.Post("/leave", rooms.Leave())
			r.Post("/submit", rooms.Submit())
			r.Post("/vote", rooms.Vote())
			r.Post("/admin", rooms.Admin())
			r.Post("/cheat", rooms.Cheat())
			r.Get("/state", rooms.State())
			r.Get("/events", rooms.Events())
		})
	})

	r.Route("/debug", func(r chi.Router) {
		r.Use(BodyCaptureMiddleware(4096))
		r.Get("/vars", expvar.Handler().ServeHTTP)
	})

	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}

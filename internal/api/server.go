// Package api exposes a loader over HTTP for tooling: listing, inspecting,
// loading and evicting assets of a running cache.
package api

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/samcharles93/caaf/internal/gpu"
	"github.com/samcharles93/caaf/internal/loader"
	"github.com/samcharles93/caaf/internal/logger"
	"github.com/samcharles93/caaf/internal/version"
)

// PassFunc begins a copy pass and returns the function that submits it.
type PassFunc func() (gpu.CopyPass, func() error)

// Server serializes every request on one loader.
type Server struct {
	mu     sync.Mutex
	loader *loader.Loader
	begin  PassFunc
	log    logger.Logger
}

func NewServer(l *loader.Loader, begin PassFunc, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{loader: l, begin: begin, log: log.With("component", "api")}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/version", s.handleVersion)

	e.GET("/v1/assets", s.handleListAssets)
	e.POST("/v1/assets", s.handleLoadAsset)
	e.DELETE("/v1/assets", s.handleClear)
	e.GET("/v1/assets/:name", s.handleGetAsset)
	e.DELETE("/v1/assets/:name", s.handleEvictAsset)

	e.GET("/v1/shaders", s.handleListShaders)
	e.POST("/v1/shaders/:name", s.handleLoadShader)
}

func (s *Server) handleVersion(c *echo.Context) error {
	return c.JSON(http.StatusOK, version.Resolve())
}

func (s *Server) handleListAssets(c *echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assets := s.loader.List()
	out := AssetList{Object: "list", Data: make([]AssetSummary, 0, len(assets))}
	for _, a := range assets {
		out.Data = append(out.Data, summarize(a))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetAsset(c *echo.Context) error {
	name := c.Param("name")

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.loader.Get(name)
	if !ok {
		return writeError(c, fmt.Errorf("%w: %s", loader.ErrNotLoaded, name))
	}
	return c.JSON(http.StatusOK, detail(s.loader, a))
}

func (s *Server) handleLoadAsset(c *echo.Context) error {
	req, err := decodeJSON[LoadRequest](c.Request().Body)
	if err != nil {
		return writeError(c, newInvalidRequest("invalid JSON body: "+err.Error()))
	}
	if (req.Name == "") == (req.Path == "") {
		return writeError(c, newInvalidRequest("exactly one of name and path is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := req.Name
	pass, submit := s.begin()
	if req.Name != "" {
		err = s.loader.Load(c.Request().Context(), req.Name, pass)
	} else {
		name, err = s.loader.ReadPath(c.Request().Context(), req.Path, pass)
	}
	if serr := submit(); serr != nil {
		s.log.Error("copy pass submit failed", "err", serr)
		if err == nil {
			err = serr
		}
	}
	if err != nil {
		s.log.Warn("load failed", "name", req.Name, "path", req.Path, "err", err)
		return writeError(c, err)
	}

	a, ok := s.loader.Get(name)
	if !ok {
		return writeError(c, fmt.Errorf("%w: %s", loader.ErrNotLoaded, name))
	}
	return c.JSON(http.StatusOK, summarize(a))
}

func (s *Server) handleEvictAsset(c *echo.Context) error {
	name := c.Param("name")

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loader.Evict(name) {
		return writeError(c, fmt.Errorf("%w: %s", loader.ErrNotLoaded, name))
	}
	return c.JSON(http.StatusOK, DeleteResp{Name: name, Deleted: true})
}

func (s *Server) handleClear(c *echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.loader.Len()
	s.loader.Clear()
	return c.JSON(http.StatusOK, DeleteResp{Deleted: true, Count: n})
}

func (s *Server) handleListShaders(c *echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, ShaderList{Object: "list", Data: s.loader.Shaders()})
}

func (s *Server) handleLoadShader(c *echo.Context) error {
	name := c.Param("name")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loader.LoadShader(c.Request().Context(), name); err != nil {
		return writeError(c, err)
	}
	code, _ := s.loader.Shader(name)
	return c.JSON(http.StatusOK, map[string]any{"name": name, "bytes": len(code)})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// Package api is the operator control surface: start a run, poll its
// progress log, and download the produced workbook. It communicates with
// the run worker only through the progress buffer and the one-shot
// completion callback.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/storyrake/browser"
	"github.com/use-agent/storyrake/config"
	"github.com/use-agent/storyrake/run"
)

// job tracks one run from start to completion.
type job struct {
	ID        string
	CreatedAt time.Time
	Buffer    *run.ProgressBuffer

	mu       sync.Mutex
	phase    string
	done     bool
	success  bool
	message  string
	payload  []byte
	filename string
}

func (j *job) setPhase(p string) {
	j.mu.Lock()
	j.phase = p
	j.mu.Unlock()
}

func (j *job) complete(success bool, message string, payload []byte, filename string) {
	j.mu.Lock()
	j.done = true
	j.success = success
	j.message = message
	j.payload = payload
	j.filename = filename
	j.mu.Unlock()
}

// Server owns the run registry. One run executes at a time: the browser
// session is not safely shared across concurrent callers.
type Server struct {
	factory browser.Factory

	mu      sync.Mutex
	jobs    map[string]*job
	running bool
}

// NewServer returns a Server creating browser sessions via factory.
func NewServer(factory browser.Factory) *Server {
	return &Server{
		factory: factory,
		jobs:    make(map[string]*job),
	}
}

// Router builds the gin engine with all control-surface routes.
func (s *Server) Router(mode string) *gin.Engine {
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.POST("/runs", s.postRun)
	v1.GET("/runs/:id", s.getRun)
	v1.GET("/runs/:id/progress", s.getProgress)
	v1.GET("/runs/:id/result", s.getResult)
	return r
}

// postRun accepts a YAML run configuration in the request body, validates
// it and starts the run in a background worker.
func (s *Server) postRun(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := config.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}
	s.running = true
	j := &job{
		ID:        "run-" + randomID(),
		CreatedAt: time.Now(),
		Buffer:    run.NewProgressBuffer(4096),
		phase:     "Starting",
	}
	s.jobs[j.ID] = j
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		orch := run.New(cfg, s.factory)
		orch.Run(context.Background(), run.Callbacks{
			Progress: j.Buffer.Append,
			Status:   j.setPhase,
			Complete: j.complete,
		})
	}()

	c.JSON(http.StatusAccepted, gin.H{"id": j.ID, "status": "running"})
}

func (s *Server) getRun(c *gin.Context) {
	j, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	resp := gin.H{
		"id":         j.ID,
		"phase":      j.phase,
		"done":       j.done,
		"has_result": j.payload != nil,
	}
	if j.done {
		resp["success"] = j.success
		resp["message"] = j.message
	}
	c.JSON(http.StatusOK, resp)
}

// getProgress drains the job's pending progress messages.
func (s *Server) getProgress(c *gin.Context) {
	j, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	messages := j.Buffer.Drain()
	if messages == nil {
		messages = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// getResult streams the produced workbook once the run has completed
// successfully.
func (s *Server) getResult(c *gin.Context) {
	j, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	j.mu.Lock()
	done, payload, filename := j.done, j.payload, j.filename
	j.mu.Unlock()

	if !done {
		c.JSON(http.StatusConflict, gin.H{"error": "run still in progress"})
		return
	}
	if payload == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run produced no output"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
}

func (s *Server) lookup(id string) (*job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

// randomID returns a short hex job identifier.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

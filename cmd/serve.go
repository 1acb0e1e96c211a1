package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forgen-run/forgen/engine"
	_ "github.com/forgen-run/forgen/engine/tool" // registers every built-in tool via init()
	"github.com/forgen-run/forgen/utils/ai"
	"github.com/forgen-run/forgen/utils/tmpl"
	"github.com/spf13/cobra"
)

// ProcessResponse is the /process endpoint's JSON reply shape.
type ProcessResponse struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Deferred bool                   `json:"deferred,omitempty"`
	Steps    int                    `json:"steps"`
	Failed   int                    `json:"failed"`
	Provides map[string]interface{} `json:"provides,omitempty"`
}

// HealthResponse is the /health endpoint's JSON reply shape.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// RecipeFileInfo describes one recipe found under the server's data
// directory, for the /list endpoint.
type RecipeFileInfo struct {
	Name string `json:"name"`
}

// ListResponse is the /list endpoint's JSON reply shape.
type ListResponse struct {
	Success bool             `json:"success"`
	Recipes []RecipeFileInfo `json:"recipes"`
	Error   string           `json:"error,omitempty"`
}

// responseWriter wraps http.ResponseWriter to capture the status code
// for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var serverLogger = log.New(os.Stdout, "", log.LstdFlags)

func logRequest(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{w, http.StatusOK}

		var authInfo string
		if auth := r.Header.Get("Authorization"); auth != "" && len(auth) > 7 {
			authInfo = strings.Replace(auth, auth[7:], "********", 1)
		}

		handler(wrapped, r)

		serverLogger.Printf("Request: method=%s path=%s query=%s auth=%s status=%d duration=%v",
			r.Method, r.URL.Path, r.URL.RawQuery, authInfo, wrapped.statusCode, time.Since(start))
	}
}

func checkAuth(serverConfig *forgenServerConfig, w http.ResponseWriter, r *http.Request) bool {
	if !serverConfig.Enabled {
		return true
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(ProcessResponse{Success: false, Error: "Authorization header required"})
		return false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(ProcessResponse{Success: false, Error: "Invalid authorization header format"})
		return false
	}

	if parts[1] != serverConfig.BearerToken {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(ProcessResponse{Success: false, Error: "Invalid bearer token"})
		return false
	}

	return true
}

// forgenServerConfig is the resolved shape checkAuth/handleProcess work
// against, decoupled from utils/config's yaml-tagged struct.
type forgenServerConfig struct {
	Enabled     bool
	Port        int
	BearerToken string
	DataDir     string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server for running recipes over the network",
	Long:  `Start an HTTP server that runs recipe YAML files against a project directory via HTTP requests.`,
	Run: func(cmd *cobra.Command, args []string) {
		sc := envConfig.GetServerConfig()
		serverConfig := &forgenServerConfig{
			Enabled:     sc.Enabled,
			Port:        sc.Port,
			BearerToken: sc.BearerToken,
			DataDir:     sc.DataDir,
		}
		if serverConfig.DataDir == "" {
			serverConfig.DataDir = "."
		}
		if serverConfig.Port == 0 {
			serverConfig.Port = 8080
		}

		if err := os.MkdirAll(serverConfig.DataDir, 0755); err != nil {
			log.Fatalf("Error creating data directory: %v", err)
		}

		mux := http.NewServeMux()

		mux.HandleFunc("/health", logRequest(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(HealthResponse{
				Status:    "ok",
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}))

		mux.HandleFunc("/list", logRequest(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if !checkAuth(serverConfig, w, r) {
				return
			}

			files, err := filepath.Glob(filepath.Join(serverConfig.DataDir, "*.yaml"))
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(ListResponse{Success: false, Error: fmt.Sprintf("listing recipes: %v", err)})
				return
			}

			var infos []RecipeFileInfo
			for _, file := range files {
				rel, err := filepath.Rel(serverConfig.DataDir, file)
				if err != nil {
					continue
				}
				infos = append(infos, RecipeFileInfo{Name: rel})
			}

			json.NewEncoder(w).Encode(ListResponse{Success: true, Recipes: infos})
		}))

		mux.HandleFunc("/process", logRequest(func(w http.ResponseWriter, r *http.Request) {
			if !checkAuth(serverConfig, w, r) {
				return
			}
			handleServeProcess(w, r, serverConfig)
		}))

		server := &http.Server{
			Addr:         fmt.Sprintf(":%d", serverConfig.Port),
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		fmt.Printf("Starting server on port %d...\n", serverConfig.Port)
		fmt.Printf("Data directory: %s\n", serverConfig.DataDir)
		if serverConfig.Enabled {
			fmt.Println("Authentication is enabled. Bearer token required.")
			fmt.Printf("Example usage: curl -X POST -H 'Authorization: Bearer %s' 'http://localhost:%d/process?recipe=scaffold.yaml'\n",
				serverConfig.BearerToken, serverConfig.Port)
		} else {
			fmt.Printf("Example usage: curl -X POST 'http://localhost:%d/process?recipe=scaffold.yaml'\n", serverConfig.Port)
		}

		if err := server.ListenAndServe(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	},
}

// serveProcessRequest is the expected POST body: variables to pass to
// the recipe plus the project directory it should run against.
type serveProcessRequest struct {
	Variables  map[string]interface{} `json:"variables"`
	WorkingDir string                 `json:"workingDir"`
	DryRun     bool                   `json:"dryRun"`
	Force      bool                   `json:"force"`
}

func handleServeProcess(w http.ResponseWriter, r *http.Request, serverConfig *forgenServerConfig) {
	w.Header().Set("Content-Type", "application/json")

	recipeName := r.URL.Query().Get("recipe")
	if recipeName == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ProcessResponse{Success: false, Error: "recipe query parameter is required"})
		return
	}

	recipePath := recipeName
	if !strings.HasPrefix(recipePath, serverConfig.DataDir) {
		recipePath = filepath.Join(serverConfig.DataDir, recipeName)
	}

	raw, err := os.ReadFile(recipePath)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ProcessResponse{Success: false, Error: fmt.Sprintf("reading recipe: %v", err)})
		return
	}

	var req serveProcessRequest
	if r.Body != nil {
		// A body is optional; an empty or absent one just means no
		// variables and the recipe's own directory as the working dir.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	root := req.WorkingDir
	if root == "" {
		root = filepath.Dir(recipePath)
	}

	renderEngine := tmpl.New()
	collector := ai.NewCollector()
	ai.RegisterTags(renderEngine, collector)

	transport, err := ai.NewTransport(envConfig.Transport, envConfig)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ProcessResponse{Success: false, Error: fmt.Sprintf("building AI transport: %v", err)})
		return
	}

	eng := engine.New(renderEngine, collector, transport)

	exec := eng.ExecuteRecipe(engine.RecipeSource{
		FilePath: recipePath,
		Content:  expandPathsInYAML(string(raw)),
		Name:     strings.TrimSuffix(filepath.Base(recipePath), filepath.Ext(recipePath)),
	}, engine.Options{
		Variables:   req.Variables,
		WorkingDir:  root,
		DryRun:      req.DryRun,
		Force:       req.Force,
		SkipPrompts: true, // a server request has no terminal to prompt against
		EnvConfig:   envConfig,
	})

	if exec.FatalError != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ProcessResponse{Success: false, Error: exec.FatalError.Error()})
		return
	}

	if exec.Deferred {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(ProcessResponse{Success: true, Deferred: true, Message: exec.Message})
		return
	}

	status := http.StatusOK
	if !exec.Success {
		status = http.StatusUnprocessableEntity
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ProcessResponse{
		Success:  exec.Success,
		Steps:    exec.Metadata.TotalSteps,
		Failed:   exec.Metadata.FailedSteps,
		Provides: exec.Provides,
		Message:  fmt.Sprintf("processed %s", recipeName),
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"PowerPulse/internal/agent"
	xerrors "PowerPulse/internal/errors"
	"PowerPulse/internal/supervisor"
	"PowerPulse/internal/task"
)

// Server 负责暴露 REST 接口，供外部提交分析任务与自然语言查询。
type Server struct {
	addr    string
	service *task.Service
	router  *supervisor.Router
	token   string
	metrics *metrics
}

// ServerOption 定义可选的服务配置。
type ServerOption func(*Server)

// WithQueryRouter 启用自然语言查询接口。
func WithQueryRouter(router *supervisor.Router) ServerOption {
	return func(s *Server) {
		s.router = router
	}
}

// WithStaticToken 启用静态 Bearer Token 鉴权。
func WithStaticToken(token string) ServerOption {
	return func(s *Server) {
		s.token = strings.TrimSpace(token)
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, service *task.Service, opts ...ServerOption) *Server {
	s := &Server{addr: addr, service: service, metrics: newMetrics()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回完整的路由处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/analyses", s.requireToken(s.handleAnalyses))
	mux.HandleFunc("/api/v1/analyses/", s.requireToken(s.handleAnalysisDetail))
	mux.HandleFunc("/api/v1/stats", s.requireToken(s.handleStats))
	mux.HandleFunc("/api/v1/metrics", s.requireToken(s.handleMetrics))
	mux.HandleFunc("/api/v1/queries", s.requireToken(s.handleQuery))
	return s.metrics.instrument(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateAnalysis(w, r)
	case http.MethodGet:
		s.handleListAnalyses(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// handleCreateAnalysis 处理创建分析任务的请求。
func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	var req agent.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	created, err := s.service.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(created)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	opts := listOptionsFromQuery(r)
	results, err := s.service.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}

// handleAnalysisDetail 查询单个分析任务的状态与结果。
func (s *Server) handleAnalysisDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/analyses/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "缺少任务 ID", http.StatusBadRequest)
		return
	}

	found, err := s.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(found)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.service.Stats(r.Context(), listOptionsFromQuery(r)...)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.metrics.snapshot())
}

// queryRequest 是自然语言查询的请求体。
type queryRequest struct {
	Query string `json:"query"`
}

// queryResponse 是自然语言查询的响应体。
type queryResponse struct {
	Result string `json:"result"`
}

// handleQuery 把自然语言查询交给路由器处理。
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.router == nil {
		http.Error(w, "查询路由未启用", http.StatusServiceUnavailable)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query 不能为空", http.StatusBadRequest)
		return
	}

	result, err := s.router.Handle(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(queryResponse{Result: result})
}

// requireToken 校验静态 Bearer Token。未配置 token 时直接放行。
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			header := r.Header.Get("Authorization")
			if header != "Bearer "+s.token {
				http.Error(w, "未授权", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// writeError 把业务错误码映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch xerrors.CodeOf(err) {
	case task.CodeTaskNotFound:
		status = http.StatusNotFound
	case task.CodeTaskConflict:
		status = http.StatusConflict
	case task.CodeTaskValidation, xerrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	case supervisor.CodeRoutingFailure:
		status = http.StatusBadGateway
	case xerrors.CodeTimeout:
		status = http.StatusGatewayTimeout
	case xerrors.CodeInitializationFailure:
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func listOptionsFromQuery(r *http.Request) []task.ListOption {
	opts := make([]task.ListOption, 0, 4)
	query := r.URL.Query()

	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, task.WithLimit(parsed))
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, task.WithOffset(parsed))
		}
	}
	if raw := query.Get("status"); raw != "" {
		statuses := make([]task.Status, 0, 4)
		for _, item := range strings.Split(raw, ",") {
			statuses = append(statuses, task.Status(strings.TrimSpace(item)))
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if raw := query.Get("q"); raw != "" {
		opts = append(opts, task.WithQuery(raw))
	}
	if query.Get("order") == "asc" {
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	}
	return opts
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	// 包装处理器以检查上下文状态。
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}

// Package cloudflaretest 提供测试用的 Cloudflare API 假服务
package cloudflaretest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/cloudflare/cloudflare-go"
)

// Server 只实现 zone 查询和 DNS 记录的查询、新建、修改
type Server struct {
	*httptest.Server

	Token string // 期望的 API Token

	mu      sync.Mutex
	zones   map[string]string // name -> id
	records map[string]record // id -> 记录
	nextID  int
	creates []cloudflare.DNSRecord
	updates []cloudflare.DNSRecord
	failure *ErrorInfo
}

// NewServer 启动假服务，zones 为已存在的主域名
func NewServer(token string, zones ...string) *Server {
	s := &Server{
		Token:   token,
		zones:   make(map[string]string),
		records: make(map[string]record),
	}
	for i, z := range zones {
		s.zones[z] = fmt.Sprintf("zone%d", i+1)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// ErrorInfo 错误响应中的一项，ErrorChain 序列化为 error_chain
type ErrorInfo struct {
	Code       int         `json:"code"`
	Message    string      `json:"message"`
	ErrorChain []ErrorInfo `json:"error_chain,omitempty"`
}

// FailWith 之后所有写操作返回该错误
func (s *Server) FailWith(info ErrorInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = &info
}

// Creates 返回所有新建请求
func (s *Server) Creates() []cloudflare.DNSRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cloudflare.DNSRecord(nil), s.creates...)
}

// Updates 返回所有修改请求
func (s *Server) Updates() []cloudflare.DNSRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cloudflare.DNSRecord(nil), s.updates...)
}

type record struct {
	zone string
	rec  cloudflare.DNSRecord
}

func (r record) json() map[string]any {
	return map[string]any{
		"id":      r.rec.ID,
		"zone_id": r.zone,
		"type":    r.rec.Type,
		"name":    r.rec.Name,
		"content": r.rec.Content,
		"ttl":     r.rec.TTL,
		"proxied": r.rec.Proxied != nil && *r.rec.Proxied,
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeError(w, http.StatusForbidden, ErrorInfo{Code: 10000, Message: "Authentication error"})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "zones" && r.Method == http.MethodGet:
		zones := []map[string]string{}
		name := r.URL.Query().Get("name")
		if id, ok := s.zones[name]; ok {
			zones = append(zones, map[string]string{"id": id, "name": name})
		}
		writeResult(w, zones)

	case len(parts) == 3 && parts[2] == "dns_records" && r.Method == http.MethodGet:
		q := r.URL.Query()
		records := []map[string]any{}
		for _, r := range s.records {
			if r.zone == parts[1] && r.rec.Name == q.Get("name") && r.rec.Type == q.Get("type") {
				records = append(records, r.json())
			}
		}
		writeResult(w, records)

	case len(parts) == 3 && parts[2] == "dns_records" && r.Method == http.MethodPost:
		var rec cloudflare.DNSRecord
		json.NewDecoder(r.Body).Decode(&rec)
		s.creates = append(s.creates, rec)
		if s.failure != nil {
			writeError(w, http.StatusBadRequest, *s.failure)
			return
		}
		s.nextID++
		rec.ID = fmt.Sprintf("record%d", s.nextID)
		stored := record{zone: parts[1], rec: rec}
		s.records[rec.ID] = stored
		writeResult(w, stored.json())

	case len(parts) == 4 && parts[2] == "dns_records" && (r.Method == http.MethodPatch || r.Method == http.MethodPut):
		var patch cloudflare.DNSRecord
		json.NewDecoder(r.Body).Decode(&patch)
		s.updates = append(s.updates, patch)
		if s.failure != nil {
			writeError(w, http.StatusBadRequest, *s.failure)
			return
		}
		stored, ok := s.records[parts[3]]
		if !ok || stored.zone != parts[1] {
			writeError(w, http.StatusNotFound, ErrorInfo{Code: 81044, Message: "Record does not exist."})
			return
		}
		stored.rec.Content = patch.Content
		s.records[parts[3]] = stored
		writeResult(w, stored.json())

	default:
		writeError(w, http.StatusNotFound, ErrorInfo{Code: 7003, Message: "No route for that URI"})
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"errors":      []any{},
		"messages":    []any{},
		"result":      result,
		"result_info": map[string]int{"page": 1, "per_page": 100, "count": 1, "total_count": 1, "total_pages": 1},
	})
}

func writeError(w http.ResponseWriter, status int, info ErrorInfo) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success":  false,
		"errors":   []ErrorInfo{info},
		"messages": []any{},
		"result":   nil,
	})
}

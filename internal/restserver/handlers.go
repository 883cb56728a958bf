package restserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/device-model/server/internal/asset"
	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/connectdispatch"
	"github.com/device-model/server/internal/subscription"
	"github.com/device-model/server/internal/wire"
)

// handleValue implements GetValue (GET) and SetValue (PUT/POST) over
// /v1/value/{slot}/{oid} (spec §4.7, §6).
func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	slot, oidStr, err := slotAndOidFromPath("/v1/value/", r.URL.Path)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	az := authorizerFrom(r)

	switch r.Method {
	case http.MethodGet:
		v, err := s.h.GetValue(slot, oidStr, az)
		if err != nil {
			s.sendErr(w, err)
			return
		}
		s.sendJSON(w, http.StatusOK, v)
	case http.MethodPut, http.MethodPost:
		var v wire.Value
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid value body")
			return
		}
		if err := s.h.SetValue(slot, oidStr, &v, az); err != nil {
			s.sendErr(w, err)
			return
		}
		s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleMultiSet implements MultiSetValue over POST /v1/multiset?slot=N.
func (s *Server) handleMultiSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	slot := queryUint32(r, "slot", 0)
	var payload wire.MultiSetValuePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid multiset body")
		return
	}
	if err := s.h.MultiSetValue(slot, payload.Values, authorizerFrom(r)); err != nil {
		s.sendErr(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleParam implements GetParam over GET /v1/param/{slot}/{oid}.
func (s *Server) handleParam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	slot, oidStr, err := slotAndOidFromPath("/v1/param/", r.URL.Path)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	pc, err := s.h.GetParam(slot, oidStr, authorizerFrom(r))
	if err != nil {
		s.sendErr(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, pc)
}

// handleParamInfo implements ParamInfoRequest/BasicParamInfoRequest over
// GET /v1/paraminfo?slot=N&oid=/a/b&recursive=true, streamed as SSE.
func (s *Server) handleParamInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	slot := queryUint32(r, "slot", 0)
	oidStr := r.URL.Query().Get("oid")
	recursive := r.URL.Query().Get("recursive") == "true"

	infos, err := s.h.ParamInfoRequest(slot, oidStr, recursive, authorizerFrom(r))
	if err != nil {
		s.sendErr(w, err)
		return
	}
	flush, ok := startSSE(w)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	for _, info := range infos {
		if err := writeSSE(w, "paraminfo", info); err != nil {
			return
		}
		flush()
	}
}

// handleDevice implements DeviceRequest over
// GET /v1/device?slot=N&detail=FULL&shallow=true, streamed as SSE
// component-by-component (spec §4.6, §6).
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	slot := queryUint32(r, "slot", 0)
	shallow := r.URL.Query().Get("shallow") == "true"
	detail := parseDetailLevel(r.URL.Query().Get("detail"))

	subs := subscriptionsFromQuery(r)
	ser, err := s.h.DeviceRequest(slot, detail, subs, shallow, authorizerFrom(r))

	if err != nil {
		s.sendErr(w, err)
		return
	}
	flush, ok := startSSE(w)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	for ser.HasMore() {
		comp, err := ser.GetNext()
		if err != nil {
			writeSSE(w, "error", map[string]string{"error": err.Error()})
			flush()
			return
		}
		if comp == nil {
			break
		}
		if err := writeSSE(w, "component", comp); err != nil {
			return
		}
		flush()
	}
}

// handleCommand implements ExecuteCommand over POST
// /v1/command/{slot}/{oid}?respond=true, streaming each response as SSE.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	slot, oidStr, err := slotAndOidFromPath("/v1/command/", r.URL.Path)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond := r.URL.Query().Get("respond") != "false"
	var v wire.Value
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid command value body")
			return
		}
	}
	responder, err := s.h.ExecuteCommand(slot, oidStr, &v, respond, authorizerFrom(r))
	if err != nil {
		s.sendErr(w, err)
		return
	}
	if !respond || responder == nil {
		s.sendJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}
	flush, ok := startSSE(w)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	for {
		v, exc, ok := responder.Next()
		if !ok {
			return
		}
		if exc != nil {
			writeSSE(w, "exception", exc)
		} else {
			writeSSE(w, "response", v)
		}
		flush()
	}
}

// handleLanguagePack implements LanguagePackRequest (GET) and AddLanguage
// (POST) over /v1/languagepack/{slot}/{id}.
func (s *Server) handleLanguagePack(w http.ResponseWriter, r *http.Request) {
	slot, idPath, err := slotAndOidFromPath("/v1/languagepack/", r.URL.Path)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := strings.TrimPrefix(idPath, "/")

	switch r.Method {
	case http.MethodGet:
		pack, err := s.h.LanguagePackRequest(slot, id)
		if err != nil {
			s.sendErr(w, err)
			return
		}
		s.sendJSON(w, http.StatusOK, pack)
	case http.MethodPost:
		var body struct {
			Name string            `json:"name"`
			Words map[string]string `json:"words"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid language pack body")
			return
		}
		if err := s.h.AddLanguage(slot, id, body.Name, body.Words, authorizerFrom(r)); err != nil {
			s.sendErr(w, err)
			return
		}
		s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleLanguages implements Languages over GET /v1/languages?slot=N.
func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	slot := queryUint32(r, "slot", 0)
	list, err := s.h.Languages(slot)
	if err != nil {
		s.sendErr(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, list)
}

// handleSlots implements GetPopulatedSlots over GET /v1/slots.
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.sendJSON(w, http.StatusOK, s.h.GetPopulatedSlots())
}

// handleSubscriptions implements UpdateSubscriptions over POST
// /v1/subscriptions?slot=N, using the client's remote address as its
// subscription identity so a later /v1/connect SSE stream from the same
// address shares the same Manager.
func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	slot := queryUint32(r, "slot", 0)
	var body struct {
		Add    []string `json:"add"`
		Remove []string `json:"remove"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid subscriptions body")
		return
	}
	subs := s.subs.For(slot, r.RemoteAddr)
	components, err := s.h.UpdateSubscriptions(slot, subs, body.Add, body.Remove, authorizerFrom(r))
	if err != nil {
		s.sendErr(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, components)
}

// handleConnect implements Connect over GET /v1/connect?slot=N, an SSE
// stream of PushUpdates held open until the client disconnects (spec
// §4.8).
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	slot := queryUint32(r, "slot", 0)
	detail := parseDetailLevel(r.URL.Query().Get("detail"))
	force := r.URL.Query().Get("force") == "true"
	subs := s.subs.For(slot, r.RemoteAddr)
	disp, err := s.h.Connect(slot, subs, authorizerFrom(r), connectdispatch.Config{
		MaxSize:     256,
		DetailLevel: detail,
		Force:       force,
	})
	if err != nil {
		s.sendErr(w, err)
		return
	}
	defer disp.Close()

	flush, ok := startSSE(w)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ctx := r.Context()
	for {
		msg, err := disp.Next(ctx)
		if err != nil {
			return
		}
		if err := writeSSE(w, "update", msg); err != nil {
			return
		}
		flush()
	}
}

// handleAsset implements AssetRequest's GET/PUT/POST/DELETE over
// /v1/asset/{slot}/{oid} (spec §4.9), delegating to internal/asset.Store.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		s.sendError(w, http.StatusNotImplemented, "no asset store configured")
		return
	}
	_, oidStr, err := slotAndOidFromPath("/v1/asset/", r.URL.Path)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	az := authorizerFrom(r)
	// spec §4.7 AssetRequest: download requires monitor, upload/delete
	// require operate:w.
	switch r.Method {
	case http.MethodGet:
		if !az.HasAuthz(authz.ScopeMonitor.ReadPermission()) && !az.HasAuthz(authz.ScopeMonitor.WritePermission()) {
			s.sendError(w, http.StatusUnauthorized, "asset download requires monitor")
			return
		}
	default:
		if !az.HasAuthz(authz.ScopeOperate.WritePermission()) {
			s.sendError(w, http.StatusUnauthorized, "asset upload/delete requires operate:w")
			return
		}
	}

	switch r.Method {
	case http.MethodGet:
		payload, err := s.assets.Get(oidStr, requestEncoding(r, "Accept-Encoding"))
		if err != nil {
			s.sendErr(w, err)
			return
		}
		s.sendJSON(w, http.StatusOK, payload)
	case http.MethodPost, http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "failed to read asset body")
			return
		}
		enc := requestEncoding(r, "Content-Encoding")
		writeFn := s.assets.Create
		if r.Method == http.MethodPut {
			writeFn = s.assets.Replace
		}
		if err := writeFn(oidStr, body, enc); err != nil {
			s.sendErr(w, err)
			return
		}
		s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case http.MethodDelete:
		if err := s.assets.Delete(oidStr); err != nil {
			s.sendErr(w, err)
			return
		}
		s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func requestEncoding(r *http.Request, header string) asset.Encoding {
	switch strings.ToLower(r.Header.Get(header)) {
	case "deflate":
		return asset.EncodingDeflate
	case "gzip":
		return asset.EncodingGzip
	default:
		return asset.EncodingNone
	}
}

func parseDetailLevel(v string) wire.DetailLevel {
	switch strings.ToUpper(v) {
	case "FULL":
		return wire.DetailFull
	case "SUBSCRIPTIONS":
		return wire.DetailSubscriptions
	case "MINIMAL":
		return wire.DetailMinimal
	case "COMMANDS":
		return wire.DetailCommands
	case "NONE":
		return wire.DetailNone
	default:
		return wire.DetailFull
	}
}

// startSSE writes the text/event-stream headers and returns a flush
// function, or ok=false if the ResponseWriter cannot stream.
func startSSE(w http.ResponseWriter) (func(), bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher.Flush, true
}

func writeSSE(w http.ResponseWriter, event string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}

// subscriptionsFromQuery builds a Manager from a comma-separated
// ?oids=/a,/b,/c/* query parameter, or returns nil when absent (only
// DetailSubscriptions mode requires a non-nil Manager).
func subscriptionsFromQuery(r *http.Request) *subscription.Manager {
	raw := r.URL.Query().Get("oids")
	if raw == "" {
		return nil
	}
	subs := subscription.New()
	for _, o := range strings.Split(raw, ",") {
		if o != "" {
			subs.Add(o)
		}
	}
	return subs
}

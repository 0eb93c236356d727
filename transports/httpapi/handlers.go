package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"midas/handlers/knowledge"
	"midas/handlers/stt"
	"midas/protocol"
	"midas/store"
	ws "midas/transports/websocket"
)

const statusOK = "ok"

// abortWithError ends the request with a {"error": msg} body.
func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, protocol.ErrorResponse{Error: msg})
}

// abortWithErr maps domain sentinels to client errors and everything else to 500.
func (s *Server) abortWithErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, knowledge.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "File not found")
	case errors.Is(err, knowledge.ErrInvalidName):
		abortWithError(c, http.StatusBadRequest, "Filename required")
	case errors.Is(err, store.ErrInvalidSetting), errors.Is(err, stt.ErrEmptyAudio):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		s.logger.With(map[string]any{"path": c.Request.URL.Path, "error": err}).Error("request error")
		abortWithError(c, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, protocol.HealthResponse{
		Status:          statusOK,
		KnowledgeChunks: s.deps.Index.Count(),
		HistoryEntries:  s.deps.History.Len(),
	})
}

func (s *Server) voices(c *gin.Context) {
	c.JSON(http.StatusOK, protocol.VoicesResponse{Voices: s.deps.Voices})
}

func (s *Server) transcribe(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "audio file required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.abortWithErr(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.abortWithErr(c, err)
		return
	}

	text, err := s.deps.Transcriber.Transcribe(c.Request.Context(), data, fh.Filename)
	if err != nil {
		s.abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.TranscriptionResponse{Text: text})
}

func (s *Server) chat(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		s.logger.With(map[string]any{"error": err}).Warn("websocket upgrade failed")
		return
	}
	if err := ws.NewChatConn(conn, s.logger).Serve(c.Request.Context(), s.deps.Chat); err != nil {
		s.logger.With(map[string]any{"error": err}).Warn("chat socket ended with error")
	}
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Settings.Get().Map())
}

func (s *Server) updateSettings(c *gin.Context) {
	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid settings payload")
		return
	}
	values, err := s.deps.Settings.Update(updates)
	if err != nil {
		s.abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.SettingsUpdateResponse{Status: statusOK, Settings: values.Map()})
}

func (s *Server) resetSettings(c *gin.Context) {
	values := s.deps.Settings.Reset()
	c.JSON(http.StatusOK, protocol.SettingsUpdateResponse{Status: statusOK, Settings: values.Map()})
}

func (s *Server) getHistory(c *gin.Context) {
	entries := lo.Map(s.deps.History.All(), func(ex store.Exchange, _ int) protocol.HistoryEntry {
		return protocol.HistoryEntry{Timestamp: ex.Timestamp, User: ex.User, Assistant: ex.Assistant}
	})
	c.JSON(http.StatusOK, protocol.HistoryResponse{History: entries})
}

func (s *Server) clearHistory(c *gin.Context) {
	s.deps.History.Clear()
	c.JSON(http.StatusOK, protocol.StatusResponse{Status: statusOK})
}

func (s *Server) listKnowledge(c *gin.Context) {
	files, err := s.deps.Library.List()
	if err != nil {
		s.abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.KnowledgeListResponse{
		Files: lo.Map(files, func(f knowledge.FileInfo, _ int) protocol.KnowledgeFile {
			return protocol.KnowledgeFile{Name: f.Name, Size: f.Size, Modified: f.Modified}
		}),
		Path: s.deps.Library.Dir(),
	})
}

func (s *Server) readKnowledge(c *gin.Context) {
	name := c.Param("name")
	content, err := s.deps.Library.Read(name)
	if err != nil {
		s.abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.KnowledgeFileResponse{Name: name, Content: content})
}

func (s *Server) saveKnowledge(c *gin.Context) {
	var req protocol.KnowledgeSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid knowledge payload")
		return
	}
	name, documents, err := s.deps.Library.Save(req.Name, req.Content)
	if err != nil {
		s.abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.KnowledgeMutationResponse{Status: statusOK, Name: name, Documents: documents})
}

func (s *Server) deleteKnowledge(c *gin.Context) {
	documents, err := s.deps.Library.Delete(c.Param("name"))
	if err != nil {
		s.abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.KnowledgeMutationResponse{Status: statusOK, Documents: documents})
}

func (s *Server) reloadKnowledge(c *gin.Context) {
	documents := s.deps.Index.Reload()
	c.JSON(http.StatusOK, protocol.KnowledgeMutationResponse{Status: statusOK, Documents: documents})
}

package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	node, err := s.engine.StartNode(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNodePayload(node))
}

// handleGetNode serves a node; characterId personalizes templated content.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var characterID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("characterId")); raw != "" {
		if characterID, err = parseID(raw, "characterId"); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	node, err := s.engine.GetNode(r.Context(), nodeID, characterID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNodePayload(node))
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	characterID, err := pathID(r, "characterID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.engine.GetProgress(r.Context(), characterID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressPayload(view))
}

func (s *Server) handleSubmitChoice(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.engine.SubmitChoice(r.Context(), req.submission(req.InputValue))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, choiceResultPayload{
		progressPayload: toProgressPayload(result.View),
		Decision:        result.Decision.Kind.String(),
		Died:            result.Died,
		Replayed:        result.Replayed,
	})
}

// handleSubmitPassword accepts the answer as password, falling back to inputValue.
func (s *Server) handleSubmitPassword(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	password := req.Password
	if strings.TrimSpace(password) == "" {
		password = req.InputValue
	}
	result, err := s.engine.SubmitPassword(r.Context(), req.submission(password))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, choiceResultPayload{
		progressPayload: toProgressPayload(result.View),
		Decision:        result.Decision.Kind.String(),
		Died:            result.Died,
		Replayed:        result.Replayed,
	})
}

func (s *Server) handleRandomOutfits(w http.ResponseWriter, r *http.Request) {
	count := defaultOutfitDraw
	if raw := strings.TrimSpace(r.URL.Query().Get("count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxOutfitDraw {
			s.writeError(w, r, invalidArgument("count must be between 1 and "+strconv.Itoa(maxOutfitDraw)))
			return
		}
		count = n
	}
	options, err := s.engine.RandomOutfits(r.Context(), count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outfits": toOutfitPayloads(options)})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	characterID, err := pathID(r, "characterID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.profiles.Get(r.Context(), characterID)
	if err != nil {
		s.writeError(w, r, profileError(characterID, err))
		return
	}
	writeJSON(w, http.StatusOK, toProfilePayload(p))
}

func (s *Server) handleAlignment(w http.ResponseWriter, r *http.Request) {
	characterID, err := pathID(r, "characterID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.profiles.Get(r.Context(), characterID)
	if err != nil {
		s.writeError(w, r, profileError(characterID, err))
		return
	}
	writeJSON(w, http.StatusOK, toAlignmentPayload(p))
}

func (s *Server) handleAttributes(w http.ResponseWriter, r *http.Request) {
	characterID, err := pathID(r, "characterID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.profiles.Get(r.Context(), characterID)
	if err != nil {
		s.writeError(w, r, profileError(characterID, err))
		return
	}
	writeJSON(w, http.StatusOK, p.Attributes())
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	characterID, err := pathID(r, "characterID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.profiles.Get(r.Context(), characterID)
	if err != nil {
		s.writeError(w, r, profileError(characterID, err))
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesPayload(p))
}

func (s *Server) handleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	var req createCharacterRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	character, err := s.engine.CreateCharacter(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCharacterPayload(character))
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	characterID, err := pathID(r, "characterID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	character, err := s.engine.GetCharacter(r.Context(), characterID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCharacterPayload(character))
}

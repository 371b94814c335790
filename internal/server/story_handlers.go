package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/storyforge/internal/core"
	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/agenthands/storyforge/internal/errs"
	"github.com/agenthands/storyforge/internal/export"
)

type characterRequest struct {
	Name      string   `json:"name" validate:"required,max=200"`
	Traits    []string `json:"traits"`
	Alive     *bool    `json:"alive"`
	Role      string   `json:"role" validate:"max=200"`
	LastKnown string   `json:"lastKnown" validate:"max=500"`
}

type worldRuleRequest struct {
	Category string `json:"category" validate:"required,max=100"`
	Rule     string `json:"rule" validate:"required,max=1000"`
}

type createStoryRequest struct {
	Title             string             `json:"title" validate:"required,max=300"`
	Genre             string             `json:"genre" validate:"required,oneof=indian_mythology desi_sci_fi folklore_horror historical_fiction urban_fantasy_indian other"`
	Premise           string             `json:"premise" validate:"max=2000"`
	InitialCharacters []characterRequest `json:"initialCharacters" validate:"dive"`
	InitialWorldRules []worldRuleRequest `json:"initialWorldRules" validate:"dive"`
	Structure         string             `json:"structure" validate:"required,oneof=acts chapters"`
	ActCount          int                `json:"actCount" validate:"omitempty,min=1,max=10"`
}

func (r *createStoryRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Premise = strings.TrimSpace(r.Premise)
}

type controlsRequest struct {
	Genre         string `json:"genre" validate:"omitempty,oneof=indian_mythology desi_sci_fi folklore_horror historical_fiction urban_fantasy_indian other"`
	Tone          string `json:"tone" validate:"omitempty,oneof=solemn lyrical tense wry mythic grounded noir"`
	ViolenceLevel string `json:"violenceLevel" validate:"omitempty,oneof=none implied moderate graphic"`
	TwistLevel    string `json:"twistLevel" validate:"omitempty,oneof=none subtle moderate high"`
}

// chapterRequest is shared by generate-chapter, continue and preview.
// Direction is read by generate-chapter, UserPrompt by continue; preview
// picks between them with IsContinue.
type chapterRequest struct {
	StoryID      string           `json:"storyId" validate:"required,max=128"`
	Direction    string           `json:"direction" validate:"max=2000"`
	UserPrompt   string           `json:"userPrompt" validate:"max=2000"`
	IsContinue   bool             `json:"isContinue"`
	UserControls *controlsRequest `json:"userControls"`
	ChapterGoal  string           `json:"chapterGoal" validate:"max=500"`
}

func (r *chapterRequest) normalize() {
	r.StoryID = strings.TrimSpace(r.StoryID)
	r.ChapterGoal = strings.TrimSpace(r.ChapterGoal)
}

func (r *chapterRequest) toCore(ownerID string, cont bool) core.ChapterRequest {
	req := core.ChapterRequest{
		StoryID:     r.StoryID,
		OwnerID:     ownerID,
		Continue:    cont,
		ChapterGoal: r.ChapterGoal,
	}
	if cont {
		req.ReaderPrompt = r.UserPrompt
	} else {
		req.Direction = r.Direction
	}
	if uc := r.UserControls; uc != nil {
		req.Controls = model.Controls{
			Genre:         model.Genre(uc.Genre),
			Tone:          model.Tone(uc.Tone),
			ViolenceLevel: model.ViolenceLevel(uc.ViolenceLevel),
			TwistLevel:    model.TwistLevel(uc.TwistLevel),
		}
	}
	return req
}

type chapterResponse struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Act     *int   `json:"act,omitempty"`
}

func (s *Server) CreateStory(c *gin.Context) {
	var req createStoryRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}

	in := core.NewStory{
		OwnerID:   currentUser(c).ID,
		Title:     req.Title,
		Genre:     model.Genre(req.Genre),
		Premise:   req.Premise,
		Structure: model.Structure(req.Structure),
		ActCount:  req.ActCount,
	}
	for _, ch := range req.InitialCharacters {
		in.Characters = append(in.Characters, core.NewCharacter{
			Name:      ch.Name,
			Traits:    ch.Traits,
			Alive:     ch.Alive,
			Role:      ch.Role,
			LastKnown: ch.LastKnown,
		})
	}
	for _, r := range req.InitialWorldRules {
		in.WorldRules = append(in.WorldRules, model.WorldRule{Category: r.Category, Rule: r.Rule})
	}

	story, err := s.engine.CreateStory(c.Request.Context(), in)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (s *Server) GetStory(c *gin.Context) {
	story, err := s.engine.GetStory(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (s *Server) ListStories(c *gin.Context) {
	stories, err := s.engine.ListStories(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if stories == nil {
		stories = []model.StorySummary{}
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

func (s *Server) GenerateChapter(c *gin.Context) {
	s.nextChapter(c, false)
}

func (s *Server) ContinueStory(c *gin.Context) {
	s.nextChapter(c, true)
}

func (s *Server) nextChapter(c *gin.Context, cont bool) {
	var req chapterRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}

	res, err := s.engine.NextChapter(c.Request.Context(), req.toCore(currentUser(c).ID, cont))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"storyId": res.StoryID,
		"chapter": chapterResponse{
			Index:   res.Chapter.Index,
			Title:   res.Chapter.Title,
			Content: res.Chapter.Content,
			Act:     res.Chapter.Act,
		},
		"provider": res.Provider,
		"mode":     res.Mode,
	})
}

func (s *Server) PreviewChapter(c *gin.Context) {
	var req chapterRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}

	p, err := s.engine.PreviewChapter(c.Request.Context(), req.toCore(currentUser(c).ID, req.IsContinue))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	body := gin.H{
		"mode":         p.Prompts.Mode,
		"systemPrompt": p.Prompts.System,
		"userPrompt":   p.Prompts.User,
		"nextIndex":    p.NextIndex,
		"nextAct":      p.NextAct,
	}
	if p.State != nil {
		body["state"] = p.State
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) ExportStory(c *gin.Context) {
	storyID := strings.TrimSpace(c.Query("storyId"))
	if storyID == "" {
		s.abortWithError(c, errs.Validation("storyId is required", map[string]string{"storyId": "is required"}))
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	story, err := s.engine.GetStory(c.Request.Context(), currentUser(c).ID, storyID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	out, err := export.RenderWith(export.NewDocument(story), format, s.exportOpts)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(out.Filename))
	c.Header("Cache-Control", "private, no-cache")
	c.Data(http.StatusOK, out.MIMEType, out.Data)
}

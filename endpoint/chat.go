package endpoint

import (
	"errors"
	"fmt"

	"github.com/ariebrainware/realty-leads/assistant"
	"github.com/ariebrainware/realty-leads/metrics"
	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatMessageRequest is one visitor message.
type ChatMessageRequest struct {
	Message string `json:"message" binding:"required" example:"I want to rent"`
}

// ChatReplyResponse is returned for every visitor message.
type ChatReplyResponse struct {
	Reply        assistant.Reply            `json:"reply"`
	Conversation assistant.ConversationView `json:"conversation"`
}

// StartChat godoc
// @Summary      Start chat
// @Description  Open a conversation with the scripted assistant
// @Tags         Chat
// @Produce      json
// @Success      201 {object} util.APIResponse{data=assistant.ConversationView} "Conversation started"
// @Failure      429 {object} util.APIResponse "Too many requests"
// @Router       /chat [post]
func StartChat(store *assistant.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv := store.Start()
		metrics.ChatConversationsActive.Set(float64(store.Len()))
		util.CallCreated(c, util.APISuccessParams{Msg: "Conversation started", Data: conv.Snapshot()})
	}
}

// GetChat godoc
// @Summary      Get chat
// @Tags         Chat
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Success      200 {object} util.APIResponse{data=assistant.ConversationView} "Conversation retrieved"
// @Failure      404 {object} util.APIResponse "Conversation not found"
// @Router       /chat/{id} [get]
func GetChat(store *assistant.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := conversationOrRespond(c, store)
		if !ok {
			return
		}
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "Conversation retrieved", Data: conv.Snapshot()})
	}
}

// SendChatMessage godoc
// @Summary      Send chat message
// @Description  Feed one message to the assistant. The final answer stores the conversation as a lead.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Param        request body ChatMessageRequest true "Message"
// @Success      200 {object} util.APIResponse{data=ChatReplyResponse} "Reply"
// @Failure      400 {object} util.APIResponse "Invalid input or conversation complete"
// @Failure      404 {object} util.APIResponse "Conversation not found"
// @Failure      429 {object} util.APIResponse "Too many requests"
// @Router       /chat/{id}/message [post]
func SendChatMessage(store *assistant.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := conversationOrRespond(c, store)
		if !ok {
			return
		}
		var req ChatMessageRequest
		if !bindJSONOrRespond(c, &req, "Invalid request payload") {
			return
		}
		if _, ok := validateOrRespond(c, map[string]string{"message": req.Message}, util.ValidationOptions{MaxLength: 500, Required: true}); !ok {
			return
		}

		step := conv.CurrentStep()
		reply, err := conv.Handle(req.Message)
		if errors.Is(err, assistant.ErrConversationComplete) {
			util.CallUserError(c, util.APIErrorParams{Msg: "This conversation is already complete", Err: err})
			return
		}
		outcome := "reprompt"
		if reply.Advanced {
			outcome = "advanced"
		}
		metrics.ChatMessages.WithLabelValues(string(step), outcome).Inc()

		if reply.Complete {
			db, ok := getDBOrRespond(c)
			if !ok {
				return
			}
			if err := saveChatLead(db, conv, c.ClientIP()); err != nil {
				conv.Reopen()
				util.Logger().Error("failed to store chat lead", zap.String("conversation", conv.ID), zap.Error(err))
				util.CallServerError(c, util.APIErrorParams{Msg: "Failed to submit your request", Err: err})
				return
			}
		}

		util.CallSuccessOK(c, util.APISuccessParams{
			Msg:  "Reply",
			Data: ChatReplyResponse{Reply: reply, Conversation: conv.Snapshot()},
		})
	}
}

func conversationOrRespond(c *gin.Context, store *assistant.Store) (*assistant.Conversation, bool) {
	conv, err := store.Get(c.Param("id"))
	if err != nil {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Conversation not found", Err: err})
		return nil, false
	}
	return conv, true
}

// saveChatLead inserts the finished conversation as a chat_assistant lead.
func saveChatLead(db *gorm.DB, conv *assistant.Conversation, ip string) error {
	transcript, err := conv.Transcript()
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	v := conv.Snapshot()
	lead := model.Lead{
		Name:         v.Data.Name,
		Email:        v.Data.Email,
		Phone:        v.Data.Phone,
		Preference:   v.Data.Preference,
		Location:     v.Data.Location,
		BudgetMin:    v.Data.BudgetMin,
		BudgetMax:    v.Data.BudgetMax,
		Bedrooms:     v.Data.Bedrooms,
		Timeline:     v.Data.Timeline,
		Source:       model.LeadSourceChatAssistant,
		Conversation: datatypes.JSON(transcript),
		IP:           ip,
	}
	if err := insertLead(db, &lead); err != nil {
		return err
	}
	conv.SetLeadID(lead.ID)
	return nil
}

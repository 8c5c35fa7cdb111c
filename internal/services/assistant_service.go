package services

import (
	"context"
	"strings"
)

var crisisKeywords = []string{
	"suicide",
	"kill myself",
	"killing myself",
	"end my life",
	"want to die",
	"i want to die",
	"self-harm",
	"self harm",
	"cut myself",
	"hurt myself",
	"overdose",
	"ending it all",
}

const crisisReply = "It sounds like you might be going through something very serious. " +
	"I'm not able to help with emergencies, crisis situations, or self-harm. " +
	"Please contact your local emergency services, a trusted person, or a mental health hotline in your country immediately. " +
	"If you are in immediate danger, call your local emergency number right now.\n\n" +
	"This is general information, not a diagnosis or emergency service."

const assistantSystemPrompt = "You are a helpful assistant for a psychotherapy booking platform. " +
	"You answer general questions about sessions, scheduling and the platform. " +
	"You never diagnose, never give medical advice, and you direct emergencies to local services."

// AssistantService answers patient questions through the model provider,
// short-circuiting anything that looks like a crisis to a fixed safety reply.
type AssistantService struct {
	client summaryGenerator
}

func NewAssistantService(client summaryGenerator) *AssistantService {
	return &AssistantService{client: client}
}

func (s *AssistantService) Reply(ctx context.Context, userMessage string) (string, error) {
	lower := strings.ToLower(userMessage)
	for _, keyword := range crisisKeywords {
		if strings.Contains(lower, keyword) {
			return crisisReply, nil
		}
	}

	if s.client == nil {
		return "", ErrExternalUnavailable
	}
	reply, err := s.client.ChatComplete(ctx, assistantSystemPrompt, userMessage)
	if err != nil {
		return "", ErrExternalUnavailable
	}
	return reply, nil
}

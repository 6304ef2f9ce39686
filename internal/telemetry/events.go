package telemetry

import "context"

// Scope identifies whose turn an entry belongs to.
type Scope struct {
	UserID         string
	ConversationID string
}

func (s Scope) fields(extra Fields) Fields {
	f := Fields{"userId": s.UserID}
	if s.ConversationID != "" {
		f["conversationId"] = s.ConversationID
	}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// With logs at level with the scope's identifiers merged into f.
func (l *Logger) With(ctx context.Context, s Scope, level Level, msg string, f Fields) {
	l.Log(ctx, level, msg, s.fields(f))
}

func (l *Logger) LogModelRequest(ctx context.Context, s Scope, messageCount int, toolsOffered bool, payload any) {
	f := Fields{"messageCount": messageCount, "toolsOffered": toolsOffered}
	if l.Verbose() {
		f["payload"] = payload
	}
	l.Log(ctx, LevelInfo, "model request", s.fields(f))
}

func (l *Logger) LogModelResponse(ctx context.Context, s Scope, finishReason string, toolCalls int, inputTokens, outputTokens int64, payload any) {
	f := Fields{
		"finishReason":  finishReason,
		"toolCallCount": toolCalls,
		"inputTokens":   inputTokens,
		"outputTokens":  outputTokens,
	}
	if l.Verbose() {
		f["payload"] = payload
	}
	l.Log(ctx, LevelInfo, "model response", s.fields(f))
}

func (l *Logger) LogToolCall(ctx context.Context, s Scope, toolName, toolCallID string, input any) {
	f := Fields{"toolName": toolName, "toolCallId": toolCallID}
	if l.Verbose() {
		f["input"] = input
	}
	l.Log(ctx, LevelInfo, "tool call", s.fields(f))
}

func (l *Logger) LogToolResult(ctx context.Context, s Scope, toolName, toolCallID string, success bool, elapsedMs int64, output any) {
	f := Fields{
		"toolName":        toolName,
		"toolCallId":      toolCallID,
		"success":         success,
		"executionTimeMs": elapsedMs,
	}
	if l.Verbose() {
		f["output"] = output
	}
	level := LevelInfo
	if !success {
		level = LevelWarning
	}
	l.Log(ctx, level, "tool result", s.fields(f))
}

package chat

// TextChunkEvent carries one flushed, speakable piece of the reply.
type TextChunkEvent struct {
	Content string
}

func (e *TextChunkEvent) GetId() string {
	return "chat.text_chunk"
}

// AudioOutputEvent carries the WAV rendering of the preceding text chunk.
type AudioOutputEvent struct {
	WAV        []byte
	SampleRate int
}

func (e *AudioOutputEvent) GetId() string {
	return "chat.audio_output"
}

// TurnCompletedEvent closes a successful turn.
type TurnCompletedEvent struct {
	FullText string
}

func (e *TurnCompletedEvent) GetId() string {
	return "chat.turn_completed"
}

// TurnFailedEvent reports an aborted turn before the connection closes.
type TurnFailedEvent struct {
	Error string
}

func (e *TurnFailedEvent) GetId() string {
	return "chat.turn_failed"
}

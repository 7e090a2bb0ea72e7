package mocks

//go:generate mockgen -destination=mock_transcriber.go -package=mocks github.com/mrsingh-rishi/articulate/stt Transcriber
//go:generate mockgen -destination=mock_completer.go -package=mocks github.com/mrsingh-rishi/articulate/llm Completer

// internal/activity/mock_gen.go
package activity

//go:generate mockgen -typed -source=./recorder.go -destination=../mocks/mock_notifier.go -package=mocks Notifier

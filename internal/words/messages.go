package words

import (
	"fmt"
	"sync"

	"github.com/higherpwned/server/assets"
	"github.com/higherpwned/server/internal/rng"
)

var (
	msgOnce  sync.Once
	messages []string
)

func loadMessages() {
	list, err := assets.MessageList()
	if err != nil || len(list) == 0 {
		list = []string{"try harder"}
	}
	messages = list
}

// LossMessage picks a random taunt for the result screen.
func LossMessage(r rng.Source) string {
	msgOnce.Do(loadMessages)
	return messages[r.IntN(len(messages))]
}

// Messages returns every loss message.
func Messages() []string {
	msgOnce.Do(loadMessages)
	return append([]string(nil), messages...)
}

// ShareText is the brag line offered after a game.
func ShareText(score int) string {
	return fmt.Sprintf("I scored %d on HIGHER || PWNED_ - the password breach guessing game! Can you beat my score?", score)
}

// ResultArt is the ASCII art shown with the final score.
func ResultArt() string { return assets.ResultArt() }

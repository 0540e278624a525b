package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Exit builds a cli exit error; the message is printed in red.
func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(Red(fmt.Sprintf(msg, args...)), code)
}

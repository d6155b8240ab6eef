// Package logging はgommonのロガーをJSON形式で作る。echoのロガーと同じもの。
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

const header = `{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}"}`

// levelはDEBUG/INFO/WARN/ERROR/OFF（不明ならINFO）
func New(prefix string, level string) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(header)
	l.SetOutput(os.Stdout)
	l.SetLevel(ParseLevel(level))
	return l
}

// 出力しないロガー（テスト用）
func Discard(prefix string) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(io.Discard)
	return l
}

func ParseLevel(level string) log.Lvl {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return log.DEBUG
	case "WARN":
		return log.WARN
	case "ERROR":
		return log.ERROR
	case "OFF":
		return log.OFF
	default:
		return log.INFO
	}
}

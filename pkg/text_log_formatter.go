package taskmk

import (
	"fmt"

	"github.com/mitchellh/colorstring"
	"github.com/sirupsen/logrus"
)

type textLogFormatter struct {
	colorize *colorstring.Colorize
	colors   map[logrus.Level]string
}

func newTextLogFormatter(colorize bool) *textLogFormatter {
	return &textLogFormatter{
		colorize: &colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: !colorize,
			Reset:   true,
		},
		colors: map[logrus.Level]string{
			logrus.PanicLevel: "red",
			logrus.FatalLevel: "red",
			logrus.ErrorLevel: "red",
			logrus.WarnLevel:  "yellow",
			logrus.InfoLevel:  "cyan",
			logrus.DebugLevel: "dark_gray",
		},
	}
}

func (f *textLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var prefix = "[" + f.colors[entry.Level] + "]"
	task := entry.Data["task"]
	if task != nil {
		switch task := task.(type) {
		case string:
			stream := entry.Data["stream"]
			if stream != nil {
				switch stream := stream.(type) {
				case string:
					prefix = fmt.Sprintf("%s%s.%s ≫ ", prefix, task, stream)
				}
			} else {
				prefix = fmt.Sprintf("%s%s ≫ ", prefix, task)
			}
		}
	}
	return []byte(f.colorize.Color(fmt.Sprintf("%s%s\n", prefix, entry.Message))), nil
}

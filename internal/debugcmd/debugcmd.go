// Package debugcmd parses text commands sent by the companion process over the host's
// debug channel, such as
//
//	psmove_controller0:hmd_pose 1 0 0 0.1 0 1 0 1.6 0 0 1 -0.3
package debugcmd

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
)

const VerbHMDPose = "hmd_pose"

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrArguments      = errors.New("wrong number of arguments")
)

var (
	ruleWhitespace = lexer.SimpleRule{Name: "Whitespace", Pattern: `\s+`}
	ruleNumber     = lexer.SimpleRule{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`}
	ruleIdent      = lexer.SimpleRule{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`}
	rulePunct      = lexer.SimpleRule{Name: "Punct", Pattern: `[:,]`}
)

var commandLexer = lexer.MustSimple([]lexer.SimpleRule{
	ruleWhitespace,
	ruleNumber,
	ruleIdent,
	rulePunct,
})

var commandParser = participle.MustBuild[Command](
	participle.Lexer(commandLexer),
	participle.Elide(ruleWhitespace.Name),
)

type Command struct {
	Target string    `parser:"@Ident ':'"`
	Verb   string    `parser:"@Ident"`
	Args   []float64 `parser:"(@Number ','?)*"`
}

func Parse(s string) (Command, error) {
	cmd, err := commandParser.ParseString("", s)
	if err != nil {
		return Command{}, fmt.Errorf("failed to parse debug command: %w", err)
	}
	return *cmd, nil
}

// HeadPose interprets an hmd_pose command: a row-major 3x4 transform of the headset in host space.
func (c Command) HeadPose() (posemath.Pose, error) {
	if c.Verb != VerbHMDPose {
		return posemath.Pose{}, fmt.Errorf("%w: %s", ErrUnknownCommand, c.Verb)
	}
	var m [12]float64
	if len(c.Args) != len(m) {
		return posemath.Pose{}, fmt.Errorf("%w: %s takes %d values, got %d", ErrArguments, c.Verb, len(m), len(c.Args))
	}
	copy(m[:], c.Args)
	return posemath.PoseFromMatrix34(m), nil
}

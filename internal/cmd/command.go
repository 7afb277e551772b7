package cmd

import (
	"github.com/jessevdk/go-flags"
)

type Xy7z struct {
	Profile string `short:"p" long:"profile" description:"override the AWS profile of every s3:// bucket"`

	Detect   Detect   `command:"detect" description:"detect the format of archives"`
	List     List     `command:"list" alias:"l" description:"list the contents of archives"`
	Extract  Extract  `command:"extract" alias:"x" description:"extract archives"`
	Test     Test     `command:"test" alias:"t" description:"test the integrity of archives"`
	Compress Compress `command:"compress" alias:"a" description:"compress files and directories into a new archive"`
	Delete   Delete   `command:"delete" alias:"d" description:"delete items from an archive"`
	Rename   Rename   `command:"rename" alias:"rn" description:"rename an item of an archive"`
}

// NewParser creates the parser of the xy7z command line.
//
// The .xy7z configuration file is loaded before the selected command runs.
func NewParser() *flags.Parser {
	opts := &Xy7z{}

	p := flags.NewNamedParser("xy7z", flags.Default)
	if _, err := p.AddGroup("Global Options", "", opts); err != nil {
		panic(err)
	}

	p.CommandHandler = func(command flags.Commander, args []string) error {
		if err := loadConfig(opts.Profile); err != nil {
			return err
		}

		return command.Execute(args)
	}

	return p
}

package buildinfo

const (
	ProjectName = "partyhub"
	GithubURL   = "https://github.com/partyhub-games/partyhub"

	GreetingCLI = "%s %s\nsource: %s\n"

	Graffiti = `
                    _         _           _
 _ __   __ _ _ __ | |_ _   _| |__  _   _| |__
| '_ \ / _' | '__|| __| | | | '_ \| | | | '_ \
| |_) | (_| | |   | |_| |_| | | | | |_| | |_) |
| .__/ \__,_|_|    \__|\__, |_| |_|\__,_|_.__/
|_|                    |___/
`
)

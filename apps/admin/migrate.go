package main

func (cli *commandLine) migrate(args []string) error {
	extra := make([]string, 0)
	if len(args) > 1 {
		extra = append(extra, args[1:]...)
	}
	return gooseRunFunc(cli.db, args[0], extra...)
}

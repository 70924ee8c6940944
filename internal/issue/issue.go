// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	SourceDirNotFoundId Id = iota + 1
	HookFailedId
	CommandFailedId
	LogErrorsDetectedId
	TerraformNotFoundId
	ShellNotFoundId
	ConfigLoadFailedId
	RunLockedId
	InvalidRequestId
	TimeoutId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue with the glamour style at stylePath ("dark",
// "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	sourceDirNotFoundIssue = &Issue{
		id: SourceDirNotFoundId,
		mdMsg: `
# Source directory not found!

The source directory must exist and hold the deployment layout.

## Expected layout:
~~~
<source>/
  environments/<env>.tfvars
  environments/<env>-<version>.tfvars
  hooks/before*  hooks/after*
  components/<component>/
    environments/...
    hooks/<task>-before.*  hooks/<task>-after.*
~~~

## Things you can try:
- Run from the directory that holds ` + "`environments/`" + `
- Or pass ` + "`--source-dir`" + ` explicitly`,
	}

	hookFailedIssue = &Issue{
		id: HookFailedId,
		mdMsg: `
# A hook script failed!

Hooks are sourced, so an ` + "`exit`" + ` or a failing last command ends the run.
Nothing after the failing hook was executed.

## Things you can try:
- Read the hook log named in the error message
- Run the hook by hand: ` + "`bash -c 'source <hook>'`" + `
- Make sure the hook does not depend on an interactive terminal`,
	}

	commandFailedIssue = &Issue{
		id: CommandFailedId,
		mdMsg: `
# Terraform exited with an error!

The "after" hooks were not run.

## Things you can try:
- Read the terraform log named in the error message
- Check that the variable files listed by ` + "`tfrun describe`" + ` are the ones you expect
- Re-run with ` + "`--verbose`" + ` to mirror the run log on the terminal`,
		extLinks: []HttpLink{"https://developer.hashicorp.com/terraform/cli/commands"},
	}

	logErrorsDetectedIssue = &Issue{
		id: LogErrorsDetectedId,
		mdMsg: `
# Terraform reported errors!

Terraform exited with code 0 but its output contains ` + "`Error: `" + ` lines.
Everything from the first error line onwards is shown above.

## Things you can try:
- Fix the reported errors and run again
- Pass ` + "`--fail-on-log-errors=false`" + ` if these errors are expected`,
	}

	terraformNotFoundIssue = &Issue{
		id: TerraformNotFoundId,
		mdMsg: `
# Terraform executable not found!

## Things you can try:
- Install terraform and make sure it is on your PATH
- Or point ` + "`--terraform`" + ` (or ` + "`terraform_path`" + ` in the config file) at the binary`,
		extLinks: []HttpLink{"https://developer.hashicorp.com/terraform/install"},
	}

	shellNotFoundIssue = &Issue{
		id: ShellNotFoundId,
		mdMsg: `
# No shell found to source hooks!

Hooks are sourced with ` + "`bash`" + `, falling back to ` + "`sh`" + `.

## Things you can try:
- Install bash, or set ` + "`shell`" + ` in the config file
- Use the built-in interpreter: ` + "`--hook-shell virtual`",
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check the syntax of your config file
- Print the effective configuration:
~~~
$ tfrun config show
~~~
- Write a fresh default file:
~~~
$ tfrun config init
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	runLockedIssue = &Issue{
		id: RunLockedId,
		mdMsg: `
# Another run is in progress!

Only one run per component and environment may use a log directory at a time.

## Things you can try:
- Wait for the other run to finish
- Use a different ` + "`--log-dir`",
	}

	invalidRequestIssue = &Issue{
		id: InvalidRequestId,
		mdMsg: `
# Invalid run arguments!

## Things you can try:
- Component and environment must be plain names, without path separators
- ` + "`--hook-shell`" + ` must be ` + "`native`" + ` or ` + "`virtual`" + `
- ` + "`--timeout`" + ` must be a positive duration such as ` + "`30m`",
	}

	timeoutIssue = &Issue{
		id: TimeoutId,
		mdMsg: `
# A step timed out!

The hook or terraform command ran longer than the configured timeout and was killed.

## Things you can try:
- Raise ` + "`--timeout`" + ` or set it to 0 to disable it
- Check the step's log for a prompt waiting on input`,
	}

	issues = map[Id]*Issue{
		sourceDirNotFoundIssue.Id(): sourceDirNotFoundIssue,
		hookFailedIssue.Id():        hookFailedIssue,
		commandFailedIssue.Id():     commandFailedIssue,
		logErrorsDetectedIssue.Id(): logErrorsDetectedIssue,
		terraformNotFoundIssue.Id(): terraformNotFoundIssue,
		shellNotFoundIssue.Id():     shellNotFoundIssue,
		configLoadFailedIssue.Id():  configLoadFailedIssue,
		runLockedIssue.Id():         runLockedIssue,
		invalidRequestIssue.Id():    invalidRequestIssue,
		timeoutIssue.Id():           timeoutIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	values := maps.Values(issues)
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}

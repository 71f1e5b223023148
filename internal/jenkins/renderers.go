package jenkins

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vk/jobsmith/internal/document"
	"github.com/vk/jobsmith/internal/repository"
	"github.com/vk/jobsmith/internal/xmlnode"
)

// coreRenderers lists every built-in renderer in render order. The order is
// what fixes the element layout of the emitted XML, whatever order the
// options were declared in.
var coreRenderers = []struct {
	option string
	fn     Renderer
}{
	{"additional_repositories", renderAdditionalRepositories},
	{"auth_token", renderAuthToken},
	{"boosttest_patterns", xunitRenderer("BoostTestJunitHudsonTestType")},
	{"build_batch_commands", commandsRenderer("hudson.tasks.BatchFile", true)},
	{"build_shell_commands", commandsRenderer("hudson.tasks.Shell", false)},
	{"build_python_commands", commandsRenderer("hudson.plugins.python.Python", false)},
	{"console_color", renderConsoleColor},
	{"coverage", renderCoverage},
	{"cron", renderCron},
	{"custom_workspace", renderCustomWorkspace},
	{"description_regex", renderDescriptionRegex},
	{"display_name", renderDisplayName},
	{"email_notification", renderEmailNotification},
	{"git", renderGit},
	{"jsunit_patterns", xunitRenderer("JSUnitPluginType")},
	{"junit_patterns", xunitRenderer("JUnitType")},
	{"label_expression", renderLabelExpression},
	{"notification", renderNotification},
	{"notify_stash", renderNotifyStash},
	{"parameters", renderParameters},
	{"scm_poll", renderScmPoll},
	{"slack", renderSlack},
	{"timeout", renderTimeout},
	{"timeout_no_activity", renderTimeoutNoActivity},
	{"timestamps", renderTimestamps},
	{"warnings", renderWarnings},
	{"trigger_jobs", renderTriggerJobs},
}

// renderAdditionalRepositories turns the single-SCM job into a MultiSCM one:
// the primary repository's git block moves under the MultiSCM element and
// each additional repository appends its own git block after it.
func renderAdditionalRepositories(d *jobDocument, value any) error {
	repos, err := listValue("additional_repositories", value)
	if err != nil {
		return err
	}

	d.root.Remove("scm")
	multi := d.root.Path("scm")
	multi.Set("@class", "org.jenkinsci.plugins.multiplescms.MultiSCM")

	d.git.ClearAttrs()
	d.git.Tag = gitSCMClass
	multi.Path("scms").Append(d.git)

	for _, item := range repos {
		m, ok := item.(*document.Map)
		if !ok {
			return fmt.Errorf("each additional repository must be a mapping, got %T", item)
		}
		gitValue, ok := m.Get("git")
		if !ok {
			return fmt.Errorf("additional repository is missing its \"git\" mapping")
		}
		gitOpts, ok := gitValue.(*document.Map)
		if !ok {
			return fmt.Errorf("additional repository \"git\" must be a mapping, got %T", gitValue)
		}
		gx := multi.Path("scms/" + gitSCMClass + "+")
		if err := d.setGit(gitOpts, gx); err != nil {
			return err
		}
	}
	return nil
}

func renderAuthToken(d *jobDocument, value any) error {
	token, err := stringValue("auth_token", value)
	if err != nil {
		return err
	}
	d.root.SetText("authToken", token)
	return nil
}

// commandsRenderer emits one builder element per command. Batch commands are
// written with CRLF endings: Jenkins' web UI adds the CR on save, and a
// mismatch would make every diff against the deployed job dirty.
func commandsRenderer(builderTag string, crlf bool) Renderer {
	var appendCommands func(d *jobDocument, value any) error
	appendCommands = func(d *jobDocument, value any) error {
		list, ok := value.([]any)
		if !ok {
			return fmt.Errorf("build commands must be a list, got %T", value)
		}
		for _, item := range list {
			switch command := item.(type) {
			case []any:
				if err := appendCommands(d, command); err != nil {
					return err
				}
			case string:
				if crlf {
					command = strings.ReplaceAll(command, "\n", "\r\n")
				}
				d.root.SetText("builders/"+builderTag+"+/command", command)
			default:
				return fmt.Errorf("build commands must be strings, got %T", item)
			}
		}
		return nil
	}
	return appendCommands
}

var consoleColorPalettes = []string{"xterm", "vga", "css", "gnome-terminal"}

func renderConsoleColor(d *jobDocument, value any) error {
	palette, err := stringValue("console_color", value)
	if err != nil {
		return err
	}
	palette = strings.TrimSpace(palette)
	if palette == "" {
		palette = "xterm"
	}
	valid := false
	for _, known := range consoleColorPalettes {
		if palette == known {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("received unknown console_color option %q, expected one of %s (case sensitive, empty means xterm)",
			palette, strings.Join(consoleColorPalettes, ", "))
	}
	wrapper := d.root.Path("buildWrappers/hudson.plugins.ansicolor.AnsiColorBuildWrapper")
	wrapper.Set("@plugin", "ansicolor@0.4.2")
	wrapper.SetText("colorMapName", palette)
	return nil
}

func renderCoverage(d *jobDocument, value any) error {
	opts, err := mapValue("coverage", value)
	if err != nil {
		return err
	}
	pattern, _ := getString(opts, "report_pattern", "")
	if pattern == "" {
		return fmt.Errorf("coverage requires a report_pattern")
	}

	pub := d.root.Path("publishers/hudson.plugins.cobertura.CoberturaPublisher")
	pub.Set("@plugin", "cobertura@1.9.7")
	pub.SetText("coberturaReportFile", pattern)
	pub.SetText("onlyStable", "false")
	pub.SetText("failUnhealthy", "true")
	pub.SetText("failUnstable", "true")
	pub.SetText("autoUpdateHealth", "false")
	pub.SetText("autoUpdateStability", "false")
	pub.SetText("zoomCoverageChart", "false")
	pub.SetText("maxNumberOfBuilds", "0")
	pub.SetText("sourceEncoding", "UTF_8")

	writeMetrics := func(target string, metricOpts *document.Map, defaultValue int) error {
		targets := pub.Path(target + "/targets")
		targets.Set("@class", "enum-map")
		targets.Set("@enum-type", "hudson.plugins.cobertura.targets.CoverageMetric")
		for _, metric := range []struct{ name, key string }{
			{"METHOD", "method"},
			{"LINE", "line"},
			{"CONDITIONAL", "conditional"},
		} {
			threshold := defaultValue
			if metricOpts != nil {
				if text, ok := getString(metricOpts, metric.key, ""); ok && text != "" {
					threshold, err = strconv.Atoi(text)
					if err != nil {
						return fmt.Errorf("coverage %s threshold %q is not a number", metric.key, text)
					}
				}
			}
			entry := targets.Path("entry+")
			entry.SetText("hudson.plugins.cobertura.targets.CoverageMetric", metric.name)
			// Jenkins stores thresholds scaled by 100000 for precision.
			entry.SetText("int", strconv.Itoa(threshold*100000))
		}
		return nil
	}

	for _, target := range []struct {
		name         string
		key          string
		defaultValue int
	}{
		{"healthyTarget", "healthy", 80},
		{"unhealthyTarget", "unhealthy", 0},
		{"failingTarget", "failing", 0},
	} {
		var metricOpts *document.Map
		if raw, ok := opts.Get(target.key); ok {
			metricOpts, ok = raw.(*document.Map)
			if !ok {
				return fmt.Errorf("coverage %s must be a mapping, got %T", target.key, raw)
			}
		}
		if err := writeMetrics(target.name, metricOpts, target.defaultValue); err != nil {
			return err
		}
	}
	return nil
}

func renderCron(d *jobDocument, value any) error {
	schedule, err := stringValue("cron", value)
	if err != nil {
		return err
	}
	d.root.SetText("triggers/hudson.triggers.TimerTrigger/spec", schedule)
	return nil
}

func renderCustomWorkspace(d *jobDocument, value any) error {
	workspace, err := stringValue("custom_workspace", value)
	if err != nil {
		return err
	}
	d.root.SetText("customWorkspace", workspace)
	return nil
}

func renderDescriptionRegex(d *jobDocument, value any) error {
	regex, err := stringValue("description_regex", value)
	if err != nil {
		return err
	}
	setter := d.root.Path("publishers/hudson.plugins.descriptionsetter.DescriptionSetterPublisher")
	setter.SetText("regexp", regex)
	setter.SetText("regexpForFailed", regex)
	setter.SetText("setForMatrix", "false")
	return nil
}

func renderDisplayName(d *jobDocument, value any) error {
	name, err := stringValue("display_name", value)
	if err != nil {
		return err
	}
	d.root.SetText("displayName", name)
	return nil
}

// renderEmailNotification configures the mailer publisher. A plain string is
// shorthand for {recipients: ...}.
func renderEmailNotification(d *jobDocument, value any) error {
	opts, ok := value.(*document.Map)
	if !ok {
		recipients, err := stringValue("email_notification", value)
		if err != nil {
			return err
		}
		opts = document.NewMap()
		opts.Set("recipients", recipients)
	}

	recipients, ok := getString(opts, "recipients", "")
	if !ok || recipients == "" {
		return fmt.Errorf("email_notification requires recipients")
	}

	mailer := d.root.Path("publishers/hudson.tasks.Mailer")
	mailer.SetText("recipients", recipients)

	everyBuild, _ := getString(opts, "notify_every_build", "false")
	if strings.EqualFold(everyBuild, "false") {
		mailer.SetText("dontNotifyEveryUnstableBuild", "true")
	} else {
		mailer.SetText("dontNotifyEveryUnstableBuild", "false")
	}
	individuals, _ := getString(opts, "notify_individuals", "false")
	mailer.SetText("sendToIndividuals", strings.ToLower(individuals))

	return checkKnownKeys("email_notification", opts, "recipients", "notify_every_build", "notify_individuals")
}

func renderGit(d *jobDocument, value any) error {
	opts, err := mapValue("git", value)
	if err != nil {
		return err
	}
	return d.setGit(opts, d.git)
}

func renderLabelExpression(d *jobDocument, value any) error {
	label, err := stringValue("label_expression", value)
	if err != nil {
		return err
	}
	d.root.SetText("assignedNode", label)
	return nil
}

func renderNotification(d *jobDocument, value any) error {
	opts, err := mapValue("notification", value)
	if err != nil {
		return err
	}
	url, ok := getString(opts, "url", "")
	if !ok || url == "" {
		return fmt.Errorf("notification requires a url")
	}
	properties := d.root.Path("properties/com.tikal.hudson.plugins.notification.HudsonNotificationProperty")
	properties.Set("@plugin", "notification@1.9")
	endpoint := properties.Path("endpoints/com.tikal.hudson.plugins.notification.Endpoint")
	protocol, _ := getString(opts, "protocol", "HTTP")
	format, _ := getString(opts, "format", "JSON")
	endpoint.SetText("protocol", protocol)
	endpoint.SetText("format", format)
	endpoint.SetText("url", url)
	endpoint.SetText("event", "all")
	endpoint.SetText("timeout", "30000")
	endpoint.SetText("loglines", "1")
	return nil
}

// renderNotifyStash configures the Stash build-status notifier. A plain
// string is shorthand for {url: ...}, relying on the credentials configured
// globally on the Jenkins server.
func renderNotifyStash(d *jobDocument, value any) error {
	notifier := d.root.Path("publishers/org.jenkinsci.plugins.stashNotifier.StashNotifier")

	if url, ok := value.(string); ok {
		notifier.SetText("stashServerBaseUrl", url)
		return nil
	}

	opts, err := mapValue("notify_stash", value)
	if err != nil {
		return err
	}
	url, ok := getString(opts, "url", "")
	if !ok || url == "" {
		return fmt.Errorf("notify_stash requires a url")
	}
	username, _ := getString(opts, "username", "")
	password, _ := getString(opts, "password", "")
	notifier.SetText("stashServerBaseUrl", url)
	notifier.SetText("stashUserName", username)
	notifier.SetText("stashUserPassword", password)
	return checkKnownKeys("notify_stash", opts, "url", "username", "password")
}

func renderParameters(d *jobDocument, value any) error {
	params, err := listValue("parameters", value)
	if err != nil {
		return err
	}
	definitions := d.root.Path("properties/hudson.model.ParametersDefinitionProperty/parameterDefinitions")
	for _, item := range params {
		m, ok := item.(*document.Map)
		if !ok {
			return fmt.Errorf("each parameter must be a mapping, got %T", item)
		}
		for _, paramType := range m.Keys() {
			raw, _ := m.Get(paramType)
			cfg, ok := raw.(*document.Map)
			if !ok {
				return fmt.Errorf("parameter %q must be a mapping, got %T", paramType, raw)
			}

			var p = definitions
			switch paramType {
			case "choice":
				p = definitions.Path("hudson.model.ChoiceParameterDefinition+")
				p.Set("choices@class", "java.util.Arrays$ArrayList")
				p.Set("choices/a@class", "string-array")
				choicesValue, _ := cfg.Get("choices")
				choices, ok := choicesValue.([]any)
				if !ok {
					return fmt.Errorf("choice parameter requires a choices list")
				}
				for _, choice := range choices {
					text, ok := choice.(string)
					if !ok {
						return fmt.Errorf("choices must be strings, got %T", choice)
					}
					p.SetText("choices/a/string+", text)
				}
			case "string":
				p = definitions.Path("hudson.model.StringParameterDefinition+")
				if defaultValue, ok := getString(cfg, "default", ""); ok && defaultValue != "" {
					p.SetText("defaultValue", defaultValue)
				}
			default:
				return fmt.Errorf("unknown parameter type %q, expected choice or string", paramType)
			}

			name, ok := getString(cfg, "name", "")
			if !ok || name == "" {
				return fmt.Errorf("%s parameter requires a name", paramType)
			}
			description, _ := getString(cfg, "description", "")
			p.SetText("name", name)
			p.SetText("description", description)
		}
	}
	return nil
}

func renderScmPoll(d *jobDocument, value any) error {
	schedule, err := stringValue("scm_poll", value)
	if err != nil {
		return err
	}
	d.root.SetText("triggers/hudson.triggers.SCMTrigger/spec", schedule)
	return nil
}

func renderSlack(d *jobDocument, value any) error {
	opts, err := mapValue("slack", value)
	if err != nil {
		return err
	}
	room, _ := getString(opts, "room", "general")
	team, _ := getString(opts, "team", "")
	token, _ := getString(opts, "token", "")
	url, _ := getString(opts, "url", "")
	if team == "" || token == "" || url == "" {
		return fmt.Errorf("slack requires team, token and url")
	}

	properties := d.root.Path("properties/jenkins.plugins.slack.SlackNotifier_-SlackJobProperty")
	properties.Set("@plugin", "slack@1.2")
	properties.SetText("room", "#"+room)
	properties.SetText("startNotification", "true")
	properties.SetText("notifySuccess", "true")
	properties.SetText("notifyAborted", "true")
	properties.SetText("notifyNotBuilt", "true")
	properties.SetText("notifyUnstable", "true")
	properties.SetText("notifyFailure", "true")
	properties.SetText("notifyBackToNormal", "true")

	publisher := d.root.Path("publishers/jenkins.plugins.slack.SlackNotifier")
	publisher.Set("@plugin", "slack@1.2")
	publisher.SetText("teamDomain", team)
	publisher.SetText("authToken", token)
	publisher.SetText("buildServerUrl", url)
	publisher.SetText("room", "#"+room)
	return nil
}

func renderTimeout(d *jobDocument, value any) error {
	minutes, err := stringValue("timeout", value)
	if err != nil {
		return err
	}
	wrapper := d.root.Path("buildWrappers/hudson.plugins.build__timeout.BuildTimeoutWrapper")
	wrapper.SetText("timeoutMinutes", minutes)
	wrapper.SetText("failBuild", "true")
	return nil
}

func renderTimeoutNoActivity(d *jobDocument, value any) error {
	seconds, err := stringValue("timeout_no_activity", value)
	if err != nil {
		return err
	}
	wrapper := d.root.Path("buildWrappers/hudson.plugins.build__timeout.BuildTimeoutWrapper")
	wrapper.Set("strategy@class", "hudson.plugins.build_timeout.impl.NoActivityTimeOutStrategy")
	wrapper.SetText("strategy/timeoutSecondsString", seconds)
	wrapper.Path("operationList/hudson.plugins.build__timeout.operations.FailOperation")
	return nil
}

func renderTimestamps(d *jobDocument, value any) error {
	wrapper := d.root.Path("buildWrappers/hudson.plugins.timestamper.TimestamperBuildWrapper")
	wrapper.Set("@plugin", "timestamper@1.7.4")
	return nil
}

func renderWarnings(d *jobDocument, value any) error {
	opts, err := mapValue("warnings", value)
	if err != nil {
		return err
	}
	if opts.Len() == 0 {
		return fmt.Errorf("empty warnings options, expected at least one of: console, file")
	}
	if err := checkKnownKeys("warnings", opts, "console", "file"); err != nil {
		return err
	}

	warnings := d.root.Path("publishers/hudson.plugins.warnings.WarningsPublisher")
	warnings.Set("@plugin", "warnings@4.59")
	warnings.Path("healthy")
	warnings.Path("unHealthy")
	warnings.SetText("thresholdLimit", "low")
	warnings.SetText("pluginName", "[WARNINGS]")
	warnings.Path("defaultEncoding")
	warnings.SetText("canRunOnFailed", "true")
	warnings.SetText("usePreviousBuildAsReference", "false")
	warnings.SetText("useStableBuildAsReference", "false")
	warnings.SetText("useDeltaValues", "false")

	thresholds := warnings.Path("thresholds")
	thresholds.Set("@plugin", "analysis-core@1.82")
	for _, tag := range []string{
		"unstableTotalAll", "unstableTotalHigh", "unstableTotalNormal", "unstableTotalLow",
		"unstableNewAll", "unstableNewHigh", "unstableNewNormal", "unstableNewLow",
		"failedTotalAll", "failedTotalHigh", "failedTotalNormal", "failedTotalLow",
		"failedNewAll", "failedNewHigh", "failedNewNormal", "failedNewLow",
	} {
		thresholds.Path(tag)
	}

	warnings.SetText("shouldDetectModules", "false")
	warnings.SetText("dontComputeNew", "true")
	warnings.SetText("doNotResolveRelativePaths", "false")
	warnings.Path("includePattern")
	warnings.Path("excludePattern")
	warnings.Path("messagesPattern")

	fileParsers := warnings.Path("parserConfigurations")
	if err := eachParser(opts, "file", func(parser *document.Map) error {
		p := fileParsers.Path("hudson.plugins.warnings.ParserConfiguration+")
		pattern, _ := getString(parser, "file_pattern", "")
		name, _ := getString(parser, "parser", "")
		p.SetText("pattern", pattern)
		p.SetText("parserName", name)
		return nil
	}); err != nil {
		return err
	}

	consoleParsers := warnings.Path("consoleParsers")
	return eachParser(opts, "console", func(parser *document.Map) error {
		p := consoleParsers.Path("hudson.plugins.warnings.ConsoleParser+")
		name, _ := getString(parser, "parser", "")
		p.SetText("parserName", name)
		return nil
	})
}

func eachParser(opts *document.Map, key string, fn func(parser *document.Map) error) error {
	raw, ok := opts.Get(key)
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("warnings %s must be a list, got %T", key, raw)
	}
	for _, item := range list {
		parser, ok := item.(*document.Map)
		if !ok {
			return fmt.Errorf("each warnings %s parser must be a mapping, got %T", key, item)
		}
		if err := fn(parser); err != nil {
			return err
		}
	}
	return nil
}

var triggerConditions = []string{"SUCCESS", "UNSTABLE", "FAILED", "ALWAYS"}

func renderTriggerJobs(d *jobDocument, value any) error {
	opts, err := mapValue("trigger_jobs", value)
	if err != nil {
		return err
	}
	triggerCondition, _ := getString(opts, "condition", "SUCCESS")
	valid := false
	for _, known := range triggerConditions {
		if triggerCondition == known {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("invalid value for condition: %q, expected one of %s",
			triggerCondition, strings.Join(triggerConditions, ", "))
	}

	namesValue, _ := opts.Get("names")
	names, ok := namesValue.([]any)
	if !ok {
		return fmt.Errorf("trigger_jobs requires a names list")
	}
	jobNames := make([]string, 0, len(names))
	for _, item := range names {
		name, ok := item.(string)
		if !ok {
			return fmt.Errorf("trigger_jobs names must be strings, got %T", item)
		}
		jobNames = append(jobNames, name)
	}

	var parameters []string
	if raw, ok := opts.Get("parameters"); ok {
		list, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("trigger_jobs parameters must be a list, got %T", raw)
		}
		for _, item := range list {
			parameter, ok := item.(string)
			if !ok {
				return fmt.Errorf("trigger_jobs parameters must be strings, got %T", item)
			}
			parameters = append(parameters, parameter)
		}
	}

	trigger := d.root.Path("publishers/hudson.plugins.parameterizedtrigger.BuildTrigger")
	trigger.Set("@plugin", "parameterized-trigger@2.33")
	config := trigger.Path("configs/hudson.plugins.parameterizedtrigger.BuildTriggerConfig")
	configs := config.Path("configs")
	if len(parameters) > 0 {
		configs.SetText("hudson.plugins.parameterizedtrigger.PredefinedBuildParameters/properties",
			strings.Join(parameters, " "))
	} else {
		configs.Set("@class", "empty-list")
	}
	config.SetText("projects", strings.Join(jobNames, ", "))
	config.SetText("condition", triggerCondition)
	if len(parameters) > 0 {
		config.SetText("triggerWithNoParameters", "false")
	} else {
		config.SetText("triggerWithNoParameters", "true")
	}
	config.SetText("triggerFromChildProjects", "false")
	return nil
}

// xunitRenderer builds the xunit publisher for one result type and the
// pre-build cleanup that deletes stale result files before a build starts.
func xunitRenderer(xunitType string) Renderer {
	return func(d *jobDocument, value any) error {
		patterns, err := stringListValue(xunitType+" patterns", value)
		if err != nil {
			return err
		}

		xunit := d.root.Path("publishers/xunit")
		xunit.SetText("thresholds/org.jenkinsci.plugins.xunit.threshold.FailedThreshold/unstableThreshold", "0")
		xunit.SetText("thresholds/org.jenkinsci.plugins.xunit.threshold.FailedThreshold/unstableNewThreshold", "0")
		xunit.SetText("thresholdMode", "1")

		tool := xunit.Path("tools/" + xunitType)
		tool.SetText("pattern", strings.Join(patterns, ","))
		tool.SetText("skipNoTestFiles", "true")
		tool.SetText("failIfNotNew", "false")
		tool.SetText("deleteOutputFiles", "true")
		tool.SetText("stopProcessingIfError", "true")

		cleanup := d.root.Path("buildWrappers/hudson.plugins.ws__cleanup.PreBuildCleanup")
		for _, pattern := range patterns {
			tag := cleanup.Path("patterns/hudson.plugins.ws__cleanup.Pattern+")
			tag.SetText("pattern", pattern)
			tag.SetText("type", "INCLUDE")
		}
		return nil
	}
}

// setGit writes one git SCM block. Shared between the job's primary
// repository (defaults plus the "git" option) and every entry of
// additional_repositories.
func (d *jobDocument) setGit(opts *document.Map, gx *xmlnode.Node) error {
	consumed := map[string]bool{}
	get := func(key string) (string, bool, error) {
		consumed[key] = true
		raw, ok := opts.Get(key)
		if !ok {
			return "", false, nil
		}
		text, ok := raw.(string)
		if !ok {
			return "", false, fmt.Errorf("git option %q must be a string, got %T", key, raw)
		}
		return text, true, nil
	}
	set := func(key string, paths ...string) error {
		text, ok, err := get(key)
		if err != nil {
			return err
		}
		if ok {
			for _, path := range paths {
				gx.SetText(path, text)
			}
		}
		return nil
	}
	getDefault := func(key, fallback string) (string, error) {
		text, ok, err := get(key)
		if err != nil {
			return "", err
		}
		if !ok {
			return fallback, nil
		}
		return text, nil
	}

	gx.SetText("configVersion", "2")

	// When the block configures its own url, the checkout directory defaults
	// to that repository's name rather than the job workspace root.
	if url, hasURL, err := get("url"); err != nil {
		return err
	} else if hasURL {
		targetDir := repository.Repository{URL: url}.Name()
		if explicit, ok, err := get("target_dir"); err != nil {
			return err
		} else if ok {
			targetDir = explicit
		}
		gx.SetText("relativeTargetDir", targetDir)
	} else if err := set("target_dir", "relativeTargetDir"); err != nil {
		return err
	}

	const remoteConfig = "userRemoteConfigs/hudson.plugins.git.UserRemoteConfig"
	const cloneOption = "extensions/hudson.plugins.git.extensions.impl.CloneOption"
	if err := set("remote", remoteConfig+"/name"); err != nil {
		return err
	}
	if err := set("refspec", remoteConfig+"/refspec"); err != nil {
		return err
	}
	if err := set("url", remoteConfig+"/url"); err != nil {
		return err
	}
	if err := set("branch",
		"branches/hudson.plugins.git.BranchSpec/name",
		"extensions/hudson.plugins.git.extensions.impl.LocalBranch/localBranch",
		"localBranch",
	); err != nil {
		return err
	}
	if err := set("recursive_submodules",
		"extensions/hudson.plugins.git.extensions.impl.SubmoduleOption/recursiveSubmodules",
	); err != nil {
		return err
	}
	if err := set("shallow_clone", cloneOption+"/shallow"); err != nil {
		return err
	}

	tags, err := getDefault("tags", "false")
	if err != nil {
		return err
	}
	if tags == "true" {
		gx.SetText(cloneOption+"/noTags", "false")
	} else {
		gx.SetText(cloneOption+"/noTags", "true")
	}

	if err := set("reference", cloneOption+"/reference"); err != nil {
		return err
	}
	if err := set("timeout", cloneOption+"/timeout"); err != nil {
		return err
	}

	cleanCheckout, err := getDefault("clean_checkout", "true")
	if err != nil {
		return err
	}
	if cleanCheckout == "true" {
		gx.Path("extensions/hudson.plugins.git.extensions.impl.CleanCheckout")
	}
	lfs, err := getDefault("lfs", "true")
	if err != nil {
		return err
	}
	if lfs == "true" {
		gx.Path("extensions/hudson.plugins.git.extensions.impl.GitLFSPull")
	}

	var unknown []string
	for _, key := range opts.Keys() {
		if !consumed[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("received unknown git options: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// stringValue unwraps a renderer value expected to be a scalar.
func stringValue(option string, value any) (string, error) {
	text, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", option, value)
	}
	return text, nil
}

func listValue(option string, value any) ([]any, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list, got %T", option, value)
	}
	return list, nil
}

func mapValue(option string, value any) (*document.Map, error) {
	m, ok := value.(*document.Map)
	if !ok {
		return nil, fmt.Errorf("%s must be a mapping, got %T", option, value)
	}
	return m, nil
}

func stringListValue(option string, value any) ([]string, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list, got %T", option, value)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		text, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be strings, got %T", option, item)
		}
		out = append(out, text)
	}
	return out, nil
}

// getString reads a string key from a mapping, returning fallback when the
// key is absent. Non-string values come back as the fallback too; the caller
// validates shape separately where it matters.
func getString(m *document.Map, key, fallback string) (string, bool) {
	raw, ok := m.Get(key)
	if !ok {
		return fallback, false
	}
	text, ok := raw.(string)
	if !ok {
		return fallback, false
	}
	return text, true
}

func checkKnownKeys(option string, m *document.Map, known ...string) error {
	knownSet := make(map[string]bool, len(known))
	for _, key := range known {
		knownSet[key] = true
	}
	var unknown []string
	for _, key := range m.Keys() {
		if !knownSet[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("received unknown %s options: %s", option, strings.Join(unknown, ", "))
	}
	return nil
}

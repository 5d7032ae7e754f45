package syncjob

// BuildArgs returns the argv that runs task with live one-line stats on stderr
func BuildArgs(bin, configPath string, task *Task) []string {
	argv := []string{bin}
	if configPath != "" {
		argv = append(argv, "--config", configPath)
	}

	argv = append(argv, "--progress", "--stats-one-line", "--stats=1s")

	if task.BandwidthLimit != "" {
		argv = append(argv, "--bwlimit", task.BandwidthLimit)
	}
	if task.DryRun {
		argv = append(argv, "--dry-run")
	}
	if task.DeleteExcluded {
		argv = append(argv, "--delete-excluded")
	}
	for _, pattern := range task.ExcludePatterns {
		argv = append(argv, "--exclude", pattern)
	}

	mode := task.Mode
	if !mode.Valid() {
		mode = ModeBisync
	}
	return append(argv, string(mode), task.Source, task.Destination)
}

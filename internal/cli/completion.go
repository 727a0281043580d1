package cli

import (
	"fmt"
	"os"
	"path/filepath"
)

// bashCompletion completes lvcop commands and per-command flags.
const bashCompletion = `#!/bin/bash
# Bash completion for lvcop

_lvcop_completion() {
    local cur prev
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    local commands="login logout whoami health forecast positions streak completion version help"
    local common_flags="-config -env -base-url -v"

    case "${prev}" in
        login)
            COMPREPLY=( $(compgen -W "-email -password ${common_flags}" -- ${cur}) )
            return 0
            ;;
        logout|whoami|health)
            COMPREPLY=( $(compgen -W "${common_flags}" -- ${cur}) )
            return 0
            ;;
        forecast)
            COMPREPLY=( $(compgen -W "-date -realtime -list -regime -page ${common_flags}" -- ${cur}) )
            return 0
            ;;
        positions)
            COMPREPLY=( $(compgen -W "-summary -date -asset-class -page -page-size ${common_flags}" -- ${cur}) )
            return 0
            ;;
        streak)
            COMPREPLY=( $(compgen -W "-claim ${common_flags}" -- ${cur}) )
            return 0
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh fish -install" -- ${cur}) )
            return 0
            ;;
        -config|-env)
            COMPREPLY=( $(compgen -f -- ${cur}) )
            return 0
            ;;
        -regime)
            COMPREPLY=( $(compgen -W "steady_state elevated crisis" -- ${cur}) )
            return 0
            ;;
        *)
            ;;
    esac

    COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
    return 0
}

complete -F _lvcop_completion lvcop
`

const zshCompletion = `#compdef lvcop

_lvcop() {
    local -a commands
    commands=(
        'login:Sign in and store the session'
        'logout:Sign out and clear the stored session'
        'whoami:Show the signed-in identity'
        'health:Check platform health and readiness'
        'forecast:Fetch liquidity forecasts'
        'positions:Manage position snapshots'
        'streak:Show the activity streak'
        'completion:Generate shell completion script'
        'version:Print the client version'
        'help:Show help information'
    )

    local -a common_flags
    common_flags=(
        '-config[Configuration file path]:file:_files'
        '-env[.env file to load]:file:_files'
        '-base-url[Platform API origin]:url:'
        '-v[Verbose logging]'
    )

    _arguments -C \
        '1: :->command' \
        '*:: :->args' \
        $common_flags

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                login)
                    _arguments '-email[Account email]:email:' '-password[Account password]:password:' $common_flags
                    ;;
                forecast)
                    _arguments '-date[Target date]:date:' '-realtime[Realtime forecast]' '-list[List forecasts]' \
                        '-regime[Filter by regime]:regime:(steady_state elevated crisis)' '-page[List page]:page:' $common_flags
                    ;;
                positions)
                    _arguments '-summary[Portfolio summary]' '-date[Snapshot date]:date:' \
                        '-asset-class[Filter by asset class]:class:' '-page[List page]:page:' '-page-size[Page size]:size:' $common_flags
                    ;;
                streak)
                    _arguments '-claim[Claim the daily bonus]' $common_flags
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_lvcop "$@"
`

const fishCompletion = `# Fish completion for lvcop

complete -c lvcop -f -n "__fish_use_subcommand" -a "login" -d "Sign in and store the session"
complete -c lvcop -f -n "__fish_use_subcommand" -a "logout" -d "Sign out and clear the stored session"
complete -c lvcop -f -n "__fish_use_subcommand" -a "whoami" -d "Show the signed-in identity"
complete -c lvcop -f -n "__fish_use_subcommand" -a "health" -d "Check platform health and readiness"
complete -c lvcop -f -n "__fish_use_subcommand" -a "forecast" -d "Fetch liquidity forecasts"
complete -c lvcop -f -n "__fish_use_subcommand" -a "positions" -d "Manage position snapshots"
complete -c lvcop -f -n "__fish_use_subcommand" -a "streak" -d "Show the activity streak"
complete -c lvcop -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion"
complete -c lvcop -f -n "__fish_use_subcommand" -a "version" -d "Print the client version"
complete -c lvcop -f -n "__fish_use_subcommand" -a "help" -d "Show help information"

complete -c lvcop -f -n "__fish_seen_subcommand_from login" -o email -r -d "Account email"
complete -c lvcop -f -n "__fish_seen_subcommand_from login" -o password -r -d "Account password"

complete -c lvcop -f -n "__fish_seen_subcommand_from forecast" -o date -r -d "Target date YYYY-MM-DD"
complete -c lvcop -f -n "__fish_seen_subcommand_from forecast" -o realtime -d "Realtime forecast"
complete -c lvcop -f -n "__fish_seen_subcommand_from forecast" -o list -d "List forecasts"
complete -c lvcop -f -n "__fish_seen_subcommand_from forecast" -o regime -x -a "steady_state elevated crisis" -d "Filter by regime"

complete -c lvcop -f -n "__fish_seen_subcommand_from positions" -o summary -d "Portfolio summary"
complete -c lvcop -f -n "__fish_seen_subcommand_from positions" -o date -r -d "Snapshot date YYYY-MM-DD"
complete -c lvcop -f -n "__fish_seen_subcommand_from positions" -o asset-class -r -d "Filter by asset class"

complete -c lvcop -f -n "__fish_seen_subcommand_from streak" -o claim -d "Claim the daily bonus"

complete -c lvcop -f -n "__fish_seen_subcommand_from completion" -a "bash zsh fish" -d "Shell"

complete -c lvcop -o config -r -d "Configuration file path"
complete -c lvcop -o env -r -d ".env file to load"
complete -c lvcop -o base-url -r -d "Platform API origin"
complete -c lvcop -o v -d "Verbose logging"
`

// Completion returns the completion script for the given shell.
func Completion(shell string) (string, error) {
	switch shell {
	case "bash":
		return bashCompletion, nil
	case "zsh":
		return zshCompletion, nil
	case "fish":
		return fishCompletion, nil
	default:
		return "", fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish)", shell)
	}
}

// InstallCompletion writes the completion script to the shell's per-user
// completion directory and prints how to enable it.
func InstallCompletion(shell string) error {
	script, err := Completion(shell)
	if err != nil {
		return err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	var installPath string
	switch shell {
	case "bash":
		installPath = filepath.Join(homeDir, ".bash_completion.d", "lvcop")
	case "zsh":
		installPath = filepath.Join(homeDir, ".zsh", "completion", "_lvcop")
	case "fish":
		installPath = filepath.Join(homeDir, ".config", "fish", "completions", "lvcop.fish")
	}
	if err := os.MkdirAll(filepath.Dir(installPath), 0o755); err != nil {
		return fmt.Errorf("failed to create completion directory: %w", err)
	}
	if err := os.WriteFile(installPath, []byte(script), 0o644); err != nil {
		return fmt.Errorf("failed to write completion script: %w", err)
	}

	Successf("Completion script installed to %s", installPath)
	switch shell {
	case "bash":
		Info("Enable it with: source ~/.bash_completion.d/lvcop")
	case "zsh":
		Info("Enable it with: fpath=(~/.zsh/completion $fpath) && autoload -Uz compinit && compinit")
	case "fish":
		Info("Fish loads completions from ~/.config/fish/completions/ automatically")
	}
	return nil
}

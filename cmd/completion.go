package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_eris() {
    local cur prev words cword
    _init_completion || return

    local commands="init put get cat extract ls status rm diff verify encode export import compact keyring help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        init)
            COMPREPLY=($(compgen -W "--private --block-size" -- "$cur"))
            ;;
        put)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-n" -- "$cur"))
            else
                _filedir
            fi
            ;;
        get|cat|extract|rm|diff|verify|export)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-o --force" -- "$cur"))
            else
                # Complete with entries from the vault
                COMPREPLY=($(compgen -W "$(eris ls -q 2>/dev/null)" -- "$cur"))
            fi
            ;;
        ls)
            COMPREPLY=($(compgen -W "-q -l" -- "$cur"))
            ;;
        encode)
            COMPREPLY=($(compgen -W "--block-size --secret-hex" -- "$cur"))
            ;;
        import)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-n" -- "$cur"))
            else
                _filedir -d
            fi
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _eris eris
`

const zshCompletion = `#compdef eris

_eris() {
    local -a commands
    commands=(
        'init:Create a vault in current directory'
        'put:Encode files into the vault'
        'get:Decode an entry or capability'
        'cat:Stream an entry or capability to stdout'
        'extract:Write entries back to local files'
        'ls:List vault entries'
        'status:Show vault status'
        'rm:Remove entries from the vault index'
        'diff:Compare vault contents with local files'
        'verify:Check that every block is present and intact'
        'encode:Print the capability of stdin without storing it'
        'export:Copy the blocks of an entry to a bundle'
        'import:Copy the blocks of a capability from a bundle'
        'compact:Compact vault to reclaim disk space'
        'keyring:Manage passphrase in OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'eris commands' commands
            ;;
        args)
            case "${words[2]}" in
                init)
                    _arguments \
                        '--private[Derive the convergence secret from a passphrase]' \
                        '--block-size[Block size (1k, 32k or exponent)]:size:(1k 32k)'
                    ;;
                put)
                    _arguments \
                        '-n[Entry name when reading stdin]:name:' \
                        '*:file:_files'
                    ;;
                extract)
                    _arguments \
                        '--force[Overwrite local changes]' \
                        '*:vault entry:_eris_entries'
                    ;;
                get|cat|rm|diff|verify|export)
                    _arguments '*:vault entry:_eris_entries'
                    ;;
                ls)
                    _arguments '-q[Names only]' '-l[Show capabilities]'
                    ;;
                import)
                    _arguments '-n[Index under name]:name:' '*:bundle:_files -/'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'eris commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_eris_entries() {
    local -a entries
    entries=(${(f)"$(eris ls -q 2>/dev/null)"})
    _describe -t entries 'vault entries' entries
}

_eris "$@"
`

const fishCompletion = `# eris fish completions

set -l commands init put get cat extract ls status rm diff verify encode export import compact keyring help completion

complete -c eris -f

# Commands
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a init -d 'Create a vault'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a put -d 'Encode files into the vault'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a get -d 'Decode an entry or capability'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a cat -d 'Stream an entry to stdout'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a extract -d 'Write entries to local files'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a ls -d 'List vault entries'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show vault status'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Remove entries from vault'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a diff -d 'Compare vault with local'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a verify -d 'Check blocks'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a encode -d 'Capability of stdin'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a export -d 'Copy blocks to a bundle'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a import -d 'Copy blocks from a bundle'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact vault'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage passphrase in OS keyring'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c eris -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# init flags
complete -c eris -n "__fish_seen_subcommand_from init" -l private -d 'Passphrase-derived secret'
complete -c eris -n "__fish_seen_subcommand_from init encode" -l block-size -a "1k 32k" -d 'Block size'

# put takes files
complete -c eris -n "__fish_seen_subcommand_from put" -s n -d 'Entry name for stdin'
complete -c eris -n "__fish_seen_subcommand_from put" -F

# entry names
complete -c eris -n "__fish_seen_subcommand_from get cat extract rm diff verify export" -a "(eris ls -q 2>/dev/null)"
complete -c eris -n "__fish_seen_subcommand_from extract" -l force -d 'Overwrite local changes'

# keyring subcommands
complete -c eris -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c eris -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c eris -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/illarion/eris/cmd"
	"github.com/illarion/eris/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logger, err := logging.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid %s: %s\n", logging.EnvLevel, err)
		os.Exit(1)
	}
	defer logger.Sync()
	cmd.SetLogger(logger)

	switch os.Args[1] {
	case "init":
		runInit(ctx, os.Args[2:])
	case "put":
		runPut(ctx, os.Args[2:])
	case "get":
		runGet(ctx, os.Args[2:])
	case "cat":
		runCat(ctx, os.Args[2:])
	case "extract":
		runExtract(ctx, os.Args[2:])
	case "ls":
		runLs(ctx, os.Args[2:])
	case "status":
		runStatus(ctx, os.Args[2:])
	case "rm":
		runRm(ctx, os.Args[2:])
	case "diff":
		runDiff(ctx, os.Args[2:])
	case "verify":
		runVerify(ctx, os.Args[2:])
	case "encode":
		runEncode(ctx, os.Args[2:])
	case "export":
		runExport(ctx, os.Args[2:])
	case "import":
		runImport(ctx, os.Args[2:])
	case "compact":
		runCompact(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func parse(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// exactArgs exits with the usage line unless fs has n positional arguments
func exactArgs(fs *flag.FlagSet, n int, usage string) []string {
	if fs.NArg() != n {
		fmt.Fprintf(os.Stderr, "Usage: %s\n", usage)
		os.Exit(1)
	}
	return fs.Args()
}

func runInit(_ context.Context, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	private := fs.Bool("private", false, "Derive the convergence secret from a passphrase")
	blockSize := fs.String("block-size", "32k", "Block size: 1k, 32k, a power of two or an exponent")
	parse(fs, args)

	cmd.Init(*private, *blockSize)
}

func runPut(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	name := fs.String("n", "", "Entry name when reading stdin")
	parse(fs, args)

	cmd.Put(ctx, fs.Args(), *name)
}

func runGet(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	output := fs.String("o", "", "Write to a new file instead of stdout")
	parse(fs, args)
	target := exactArgs(fs, 1, "eris get [-o path] <name|urn>")

	cmd.Get(ctx, target[0], *output)
}

func runCat(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("cat", flag.ExitOnError)
	parse(fs, args)
	target := exactArgs(fs, 1, "eris cat <name|urn>")

	cmd.Cat(ctx, target[0])
}

func runExtract(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite local files that differ from the vault")
	parse(fs, args)

	cmd.Extract(ctx, fs.Args(), *force)
}

func runLs(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	quiet := fs.Bool("q", false, "Print entry names only")
	long := fs.Bool("l", false, "Show capability URNs")
	parse(fs, args)

	cmd.Ls(ctx, *quiet, *long)
}

func runStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	parse(fs, args)

	cmd.Status(ctx)
}

func runRm(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	parse(fs, args)

	cmd.Remove(ctx, fs.Args())
}

func runDiff(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	parse(fs, args)

	cmd.Diff(ctx, fs.Args())
}

func runVerify(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	parse(fs, args)

	cmd.Verify(ctx, fs.Args())
}

func runEncode(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	blockSize := fs.String("block-size", "32k", "Block size: 1k, 32k, a power of two or an exponent")
	secretHex := fs.String("secret-hex", "", "Convergence secret as 64 hex digits (default: null secret)")
	parse(fs, args)

	cmd.Encode(ctx, *blockSize, *secretHex)
}

func runExport(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	parse(fs, args)
	a := exactArgs(fs, 2, "eris export <name|urn> <dir>")

	cmd.Export(ctx, a[0], a[1])
}

func runImport(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	name := fs.String("n", "", "Index the imported content under name")
	parse(fs, args)
	a := exactArgs(fs, 2, "eris import [-n name] <urn> <dir>")

	cmd.Import(ctx, a[0], a[1], *name)
}

func runCompact(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	parse(fs, args)

	cmd.Compact(ctx)
}

func runKeyring(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: eris keyring <save|delete|status>")
		os.Exit(1)
	}
	switch args[0] {
	case "save":
		cmd.KeyringSave()
	case "delete":
		cmd.KeyringDelete()
	case "status":
		cmd.KeyringStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: eris completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("eris - content-addressed, convergently encrypted file vault")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  eris <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create a .eris vault in current directory")
	fmt.Println("  put         Encode files into the vault")
	fmt.Println("  get         Decode an entry or capability URN")
	fmt.Println("  cat         Stream an entry or capability URN to stdout")
	fmt.Println("  extract     Write entries back to local files")
	fmt.Println("  ls          List vault entries")
	fmt.Println("  status      Show vault status and local changes")
	fmt.Println("  rm          Remove entries from the vault index")
	fmt.Println("  diff        Compare vault contents with local files")
	fmt.Println("  verify      Check that every block is present and intact")
	fmt.Println("  encode      Print the capability URN of stdin without storing it")
	fmt.Println("  export      Copy the blocks of an entry to a bundle directory")
	fmt.Println("  import      Copy the blocks of a capability from a bundle directory")
	fmt.Println("  compact     Compact vault to reclaim disk space")
	fmt.Println("  keyring     Manage the private vault passphrase in the OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  ERIS_VAULT        Vault file (default ./.eris)")
	fmt.Println("  ERIS_PASSPHRASE   Passphrase of a private vault")
	fmt.Println("  ERIS_CONCURRENCY  Concurrent block operations (default: one per CPU)")
	fmt.Println("  ERIS_LOG_LEVEL    none, debug, info, warn or error (default none)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  eris init                       # Create new public vault")
	fmt.Println("  eris put .env                   # Store .env, print its URN")
	fmt.Println("  eris get urn:eris:B4A...        # Decode by capability")
	fmt.Println("  eris status                     # Check vault status")
	fmt.Println()
	fmt.Println("Use 'eris help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("eris init [--private] [--block-size 1k|32k|N]")
		fmt.Println()
		fmt.Println("Creates a .eris vault file in the current directory.")
		fmt.Println("Public vaults use the null convergence secret: identical content")
		fmt.Println("encodes to identical blocks and URNs everywhere.")
		fmt.Println("Private vaults derive the secret from a passphrase, so their")
		fmt.Println("encodings cannot be linked to content by anyone without it.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --private         Prompt for a passphrase (or use ERIS_PASSPHRASE)")
		fmt.Println("  --block-size      1k for small content, 32k (default) for larger")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  eris init")
		fmt.Println("  eris init --private --block-size 1k")
	case "put":
		fmt.Println("eris put <file> [file...]")
		fmt.Println("eris put -n <name> -")
		fmt.Println()
		fmt.Println("Encodes files into the vault and indexes them by path.")
		fmt.Println("Prints the read capability URN of each file.")
		fmt.Println("Supports glob patterns. With '-' the content is read from stdin.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  eris put .env")
		fmt.Println("  eris put \"config/*.secret\"")
		fmt.Println("  pg_dump db | eris put -n backups/db.sql -")
	case "get":
		fmt.Println("eris get [-o path] <name|urn>")
		fmt.Println()
		fmt.Println("Decodes an entry or capability URN to stdout, or to a new file with -o.")
		fmt.Println("Nothing is written unless every block decodes and verifies.")
	case "cat":
		fmt.Println("eris cat <name|urn>")
		fmt.Println()
		fmt.Println("Streams an entry or capability URN to stdout while decoding.")
		fmt.Println("Output may be cut short by a missing or corrupt block.")
		fmt.Println("Refuses to print binary content to a terminal.")
	case "extract":
		fmt.Println("eris extract [--force] [name...]")
		fmt.Println()
		fmt.Println("Writes entries back to files under the current directory.")
		fmt.Println("Without names, extracts every entry. Supports glob patterns.")
		fmt.Println("Local files identical to the vault are skipped; local files")
		fmt.Println("that differ are only replaced with --force.")
	case "ls":
		fmt.Println("eris ls [-q] [-l]")
		fmt.Println()
		fmt.Println("Lists vault entries with their sizes.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -q    Print names only")
		fmt.Println("  -l    Show capability URNs")
	case "status":
		fmt.Println("eris status")
		fmt.Println()
		fmt.Println("Shows vault parameters, block usage and, per entry, whether the")
		fmt.Println("local file is unchanged, modified or missing. Local files are")
		fmt.Println("re-encoded without storing anything and compared by URN.")
		fmt.Println("Inside a git work tree, also warns about plaintext files git can see.")
		fmt.Println()
		fmt.Println("Never prompts. A private vault without ERIS_PASSPHRASE or a keyring")
		fmt.Println("entry is compared by size and modification time instead.")
	case "rm":
		fmt.Println("eris rm <name> [name...]")
		fmt.Println()
		fmt.Println("Removes entries from the vault index. Supports glob patterns.")
		fmt.Println("Blocks are kept, so URNs of removed entries still decode.")
	case "diff":
		fmt.Println("eris diff [name...]")
		fmt.Println()
		fmt.Println("Shows a unified diff from the vault content to each local file.")
	case "verify":
		fmt.Println("eris verify [name|urn...]")
		fmt.Println()
		fmt.Println("Fetches every block of the named entries, or of all entries, and")
		fmt.Println("checks it against its reference. Exits 1 if any check fails.")
	case "encode":
		fmt.Println("eris encode [--block-size 1k|32k|N] [--secret-hex HEX]")
		fmt.Println()
		fmt.Println("Reads stdin and prints its capability URN. No vault is needed and")
		fmt.Println("no block is stored. Block count and size go to stderr.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  echo -n 'Hello world!' | eris encode --block-size 1k")
	case "export":
		fmt.Println("eris export <name|urn> <dir>")
		fmt.Println()
		fmt.Println("Copies every block of an entry or capability into a bundle")
		fmt.Println("directory. Share the bundle together with the printed URN.")
	case "import":
		fmt.Println("eris import [-n name] <urn> <dir>")
		fmt.Println()
		fmt.Println("Copies the blocks of a capability from a bundle directory into")
		fmt.Println("the vault, verifying each of them. With -n, also indexes the")
		fmt.Println("content under name.")
	case "compact":
		fmt.Println("eris compact")
		fmt.Println()
		fmt.Println("Compacts the vault database to reclaim unused disk space.")
	case "keyring":
		fmt.Println("eris keyring <save|delete|status>")
		fmt.Println()
		fmt.Println("Stores the passphrase of a private vault in the OS keyring so")
		fmt.Println("commands stop prompting for it.")
	case "completion":
		fmt.Println("eris completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(eris completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(eris completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  eris completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}

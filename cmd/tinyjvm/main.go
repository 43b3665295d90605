// Command tinyjvm runs a compiled Java class's main method.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rkoga/tinyjvm/pkg/classpath"
	"github.com/rkoga/tinyjvm/pkg/natives"
	"github.com/rkoga/tinyjvm/pkg/rt"
)

var (
	classPathFlag string
	verboseFlag   bool
)

// findBaseJmod locates java.base.jmod, the JDK module carrying
// java/lang/Object, java/lang/String, java/lang/Class and friends, the
// same way the teacher's cmd/gojvm does: an explicit env var first, then
// JAVA_HOME, then a glob over common OpenJDK install locations.
func findBaseJmod() string {
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

func buildClasspath(userCP string) (classpath.Entry, error) {
	var entries []classpath.Entry
	if jmodPath := findBaseJmod(); jmodPath != "" {
		jmod, err := classpath.NewJmod(jmodPath)
		if err != nil {
			return nil, fmt.Errorf("tinyjvm: %w", err)
		}
		entries = append(entries, jmod)
	}
	if userCP != "" {
		user, err := classpath.Parse(userCP)
		if err != nil {
			return nil, err
		}
		entries = append(entries, user)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("tinyjvm: no classpath entries: pass --classpath or set JAVA_HOME/JAVA_BASE_JMOD")
	}
	return classpath.NewComposite(entries...), nil
}

func run(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cp, err := buildClasspath(classPathFlag)
	if err != nil {
		return err
	}

	heap := rt.NewHeap()
	loader := rt.NewLoader(cp, heap, log)
	if err := loader.Bootstrap(); err != nil {
		return fmt.Errorf("tinyjvm: bootstrap: %w", err)
	}

	registry := rt.NewNativeRegistry()
	natives.Register(registry)

	vm := rt.NewVM(loader, heap, registry, os.Stdout, log)

	mainClass := strings.ReplaceAll(args[0], ".", "/")
	if err := vm.Execute(mainClass); err != nil {
		return fmt.Errorf("tinyjvm: %w", err)
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "tinyjvm <main-class>",
		Short: "A minimal JVM bytecode interpreter",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	rootCmd.Flags().StringVarP(&classPathFlag, "classpath", "p", "", "user classpath (':'-separated directories, jars, or dir/* wildcards)")
	rootCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

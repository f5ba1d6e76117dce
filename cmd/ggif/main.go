// Command ggif encodes and decodes GIF images from the command line.
//
// Usage:
//
//	ggif enc [options] <input>       PNG/JPEG/BMP → GIF (use "-" for stdin)
//	ggif dec [options] <input.gif>   GIF → PNG/JPEG/BMP (use "-" for stdin, -o - for stdout)
//	ggif info <input.gif>            Display GIF metadata
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"

	"github.com/deepteams/gif"
	"github.com/deepteams/gif/animation"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "enc":
		err = runEnc(os.Args[2:])
	case "dec":
		err = runDec(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "ggif: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ggif: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  ggif enc [options] <input>       Encode PNG, JPEG, or BMP to GIF
  ggif dec [options] <input.gif>   Decode GIF to PNG, JPEG, or BMP
  ggif info <input.gif>            Display GIF metadata

Use "-" as input to read from stdin, "-o -" to write to stdout.

Run "ggif <command> -h" for command-specific options.
`)
}

// openInput returns an io.ReadCloser for the given path.
// If path is "-", stdin is returned (caller should not close).
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// --- enc ---

func runEnc(args []string) error {
	fs := flag.NewFlagSet("enc", flag.ContinueOnError)
	colors := fs.Int("colors", 256, "palette size 2-256")
	quant := fs.String("quant", "median", "quantizer: median/kmeans/uniform/random")
	dither := fs.String("dither", "fs", "dithering: fs/ordered4/ordered8/none")
	scale := fs.String("scale", "", "scale to WxH before encoding (0 keeps aspect)")
	interlace := fs.Bool("interlace", false, "write interlaced rows")
	output := fs.String("o", "", `output path (default: <input>.gif, "-" for stdout)`)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("enc: missing input file\nUsage: ggif enc [options] <input>")
	}
	inputPath := fs.Arg(0)

	opts := &gif.EncoderOptions{
		NumColors: *colors,
		Interlace: *interlace,
	}
	switch *quant {
	case "median":
		opts.Quantizer = gif.QuantizerMedianCut
	case "kmeans":
		opts.Quantizer = gif.QuantizerKMeans
	case "uniform":
		opts.Quantizer = gif.QuantizerUniform
	case "random":
		opts.Quantizer = gif.QuantizerRandom
	default:
		return fmt.Errorf("enc: unknown quantizer %q", *quant)
	}
	switch *dither {
	case "fs":
		opts.Dither = gif.DitherFloydSteinberg
	case "ordered4":
		opts.Dither = gif.DitherOrdered4x4
	case "ordered8":
		opts.Dither = gif.DitherOrdered8x8
	case "none":
		opts.Dither = gif.DitherNone
	default:
		return fmt.Errorf("enc: unknown dithering %q", *dither)
	}

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("enc: decoding input: %w", err)
	}

	if *scale != "" {
		img, err = scaleImage(img, *scale)
		if err != nil {
			return err
		}
	}

	outputPath := *output
	if outputPath == "-" {
		return gif.Encode(os.Stdout, img, opts)
	}
	if outputPath == "" {
		if inputPath == "-" {
			outputPath = "output.gif"
		} else {
			base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
			outputPath = base + ".gif"
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := gif.Encode(out, img, opts); err != nil {
		out.Close()
		os.Remove(outputPath)
		return fmt.Errorf("enc: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outputPath)
		return err
	}

	fmt.Fprintf(os.Stderr, "Encoded %s → %s\n", inputPath, outputPath)
	return nil
}

// scaleImage resizes img to the "WxH" spec; a zero dimension preserves
// the aspect ratio.
func scaleImage(img image.Image, spec string) (image.Image, error) {
	var w, h uint
	if _, err := fmt.Sscanf(spec, "%dx%d", &w, &h); err != nil {
		return nil, fmt.Errorf("enc: bad scale %q (want WxH)", spec)
	}
	if w == 0 && h == 0 {
		return nil, fmt.Errorf("enc: bad scale %q (both dimensions zero)", spec)
	}
	return resize.Resize(w, h, img, resize.Lanczos3), nil
}

// --- dec ---

func runDec(args []string) error {
	fs := flag.NewFlagSet("dec", flag.ContinueOnError)
	output := fs.String("o", "", `output path (default: <input>.png, "-" for stdout)`)
	fmtFlag := fs.String("fmt", "", "output format: png, jpeg, bmp (auto-detect from extension if omitted)")
	frames := fs.Bool("frames", false, "write every animation frame as <output>_NNN.<fmt>")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("dec: missing input file\nUsage: ggif dec [options] <input.gif>")
	}
	inputPath := fs.Arg(0)

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("dec: reading input: %w", err)
	}

	if *frames {
		return decodeFrames(data, inputPath, *output, *fmtFlag)
	}
	return decodeStatic(data, inputPath, *output, *fmtFlag)
}

// detectOutputFormat returns "png", "jpeg", or "bmp" based on flag/extension.
func detectOutputFormat(fmtFlag, outputPath string) string {
	if fmtFlag != "" {
		return strings.ToLower(fmtFlag)
	}
	if outputPath != "" && outputPath != "-" {
		switch strings.ToLower(filepath.Ext(outputPath)) {
		case ".jpg", ".jpeg":
			return "jpeg"
		case ".bmp":
			return "bmp"
		}
	}
	return "png"
}

func formatExt(format string) string {
	switch format {
	case "jpeg", "jpg":
		return ".jpg"
	case "bmp":
		return ".bmp"
	default:
		return ".png"
	}
}

func decodeStatic(data []byte, inputPath, outputPath, fmtFlag string) error {
	img, err := gif.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}

	outFmt := detectOutputFormat(fmtFlag, outputPath)
	if outputPath == "-" {
		return encodeImage(os.Stdout, img, outFmt)
	}
	if outputPath == "" {
		if inputPath == "-" {
			outputPath = "output" + formatExt(outFmt)
		} else {
			base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
			outputPath = base + formatExt(outFmt)
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := encodeImage(out, img, outFmt); err != nil {
		out.Close()
		os.Remove(outputPath)
		return fmt.Errorf("dec: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outputPath)
		return err
	}

	fmt.Fprintf(os.Stderr, "Decoded %s → %s\n", inputPath, outputPath)
	return nil
}

// decodeFrames replays the animation and writes one file per frame.
func decodeFrames(data []byte, inputPath, outputPath, fmtFlag string) error {
	anim, err := animation.DecodeBytes(data)
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}

	outFmt := detectOutputFormat(fmtFlag, outputPath)
	base := outputPath
	if base == "" || base == "-" {
		if inputPath == "-" {
			base = "output"
		} else {
			base = strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		}
	} else {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}

	dec := animation.NewCanvasDecoder(anim)
	for i := 0; dec.HasNext(); i++ {
		frame, _, err := dec.NextFrame()
		if err != nil {
			return fmt.Errorf("dec: frame %d: %w", i, err)
		}
		path := fmt.Sprintf("%s_%03d%s", base, i, formatExt(outFmt))
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := encodeImage(out, frame, outFmt); err != nil {
			out.Close()
			os.Remove(path)
			return fmt.Errorf("dec: frame %d: %w", i, err)
		}
		if err := out.Close(); err != nil {
			os.Remove(path)
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "Decoded %s → %s_*%s (%d frames)\n",
		inputPath, base, formatExt(outFmt), len(anim.Frames))
	return nil
}

// encodeImage writes img in the specified format to w.
func encodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case "bmp":
		return bmp.Encode(w, img)
	default:
		return png.Encode(w, img)
	}
}

// --- info ---

func runInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("info: missing input file\nUsage: ggif info <input.gif>")
	}
	inputPath := args[0]

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	feat, err := gif.GetFeatures(in)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}

	name := inputPath
	if inputPath == "-" {
		name = "<stdin>"
	}

	fmt.Printf("File:         %s\n", name)
	fmt.Printf("Version:      GIF%s\n", feat.Version)
	fmt.Printf("Dimensions:   %d x %d\n", feat.Width, feat.Height)
	fmt.Printf("Frames:       %d\n", feat.FrameCount)
	if feat.GlobalTableSize > 0 {
		fmt.Printf("Global table: %d colors\n", feat.GlobalTableSize)
		fmt.Printf("Background:   index %d\n", feat.BackgroundIndex)
	} else {
		fmt.Printf("Global table: none\n")
	}
	if feat.LoopCount >= 0 {
		loop := "infinite"
		if feat.LoopCount > 0 {
			loop = fmt.Sprintf("%d", feat.LoopCount)
		}
		fmt.Printf("Loop count:   %s\n", loop)
	}

	if inputPath != "-" {
		if fi, err := os.Stat(inputPath); err == nil {
			fmt.Printf("File size:    %d bytes\n", fi.Size())
		}
	}

	return nil
}

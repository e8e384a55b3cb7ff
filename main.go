package main

import (
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"Trigon/internal/hal"
	"Trigon/internal/platform"
	"Trigon/internal/render"
	"Trigon/internal/scene"
	"Trigon/internal/vkhal"
)

var (
	_ render.Surface      = (*platform.Window)(nil)
	_ vkhal.SurfaceTarget = (*platform.Window)(nil)
	_ render.Pipeline     = (*vkhal.Pipeline)(nil)
)

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

type config struct {
	enableValidation bool
	debug            bool
	width, height    int
	shaderDir        string
	sierpinskiDepth  int
}

func loadConfig() config {
	return config{
		enableValidation: envBool("VK_VALIDATION", true),
		debug:            envBool("TRIGON_DEBUG", false),
		width:            envInt("TRIGON_WIDTH", 800),
		height:           envInt("TRIGON_HEIGHT", 600),
		shaderDir:        envString("TRIGON_SHADER_DIR", filepath.Join("assets", "shaders")),
		sierpinskiDepth:  envInt("TRIGON_SIERPINSKI_DEPTH", 0),
	}
}

func envBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "":
		return def
	case "0", "false", "False", "FALSE":
		return false
	default:
		return true
	}
}

func envInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		log.Printf("ignoring %s=%q", key, val)
		return def
	}
	return n
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func main() {
	cfg := loadConfig()

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	render.SetLogger(logger)
	vkhal.SetLogger(logger)

	if err := platform.Init(); err != nil {
		log.Fatalf("init platform: %v", err)
	}
	defer platform.Terminate()

	window, err := platform.NewWindow(cfg.width, cfg.height, "Trigon")
	if err != nil {
		log.Fatalf("create window: %v", err)
	}
	defer window.Destroy()

	device, err := vkhal.New(vkhal.Config{
		AppName:          "Trigon",
		EnableValidation: cfg.enableValidation,
	}, window)
	if err != nil {
		log.Fatalf("init vulkan: %v", err)
	}
	defer device.Destroy()

	reg := scene.NewRegistry()
	if _, err := scene.LoadDemo(device, reg, cfg.sierpinskiDepth); err != nil {
		log.Fatalf("load scene: %v", err)
	}
	defer reg.Destroy()

	pipelineConfig := vkhal.DefaultPipelineConfig()
	pipelineConfig.Vertex = scene.Layout()
	shaders := vkhal.ShaderPaths{
		Vertex:   filepath.Join(cfg.shaderDir, "simple_shader.vert.spv"),
		Fragment: filepath.Join(cfg.shaderDir, "simple_shader.frag.spv"),
	}

	loop, err := render.NewLoop(render.LoopConfig{
		Device:  device,
		Surface: window,
		Scene:   reg,
		Pipelines: func(pass hal.RenderPass, layout hal.PipelineLayout) (render.Pipeline, error) {
			p, err := vkhal.NewPipeline(device, pipelineConfig, shaders, pass, layout)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	})
	if err != nil {
		log.Fatalf("init renderer: %v", err)
	}

	log.Printf("Entering main loop")
	if err := loop.Run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}

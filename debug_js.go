package main

import (
	webgl "github.com/seqsense/webgl-go"
	"go.uber.org/zap"
)

func logRendererInfo(gl *webgl.WebGL, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("failed to get renderer info", zap.Any("panic", r))
		}
	}()

	ri, ok := gl.GetExtension("WEBGL_debug_renderer_info")
	if !ok {
		logger.Info("GPU info hidden by the browser privacy setting")
		return
	}
	logger.Info("renderer",
		zap.String("vendor", gl.GetParameter(ri.Get("UNMASKED_VENDOR_WEBGL").Int()).String()),
		zap.String("gpu", gl.GetParameter(ri.Get("UNMASKED_RENDERER_WEBGL").Int()).String()),
		zap.Int("max_texture_size", gl.GetParameter(gl.JS().Get("MAX_TEXTURE_SIZE").Int()).Int()),
	)
}

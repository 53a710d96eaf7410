package main

// Splats are drawn as screen aligned points with a gaussian falloff. Points
// without a splat size use a fixed world size scaled by uPointSize.
const vsSource = `#version 300 es
	layout (location = 0) in vec3 aPosition;
	layout (location = 1) in vec4 aColor;
	layout (location = 2) in float aSize;
	uniform mat4 uModelViewMatrix;
	uniform mat4 uProjectionMatrix;
	uniform float uPointSize;
	uniform float uViewportHeight;
	out lowp vec4 vColor;

	void main(void) {
		vec4 viewPosition = uModelViewMatrix * vec4(aPosition, 1.0);
		gl_Position = uProjectionMatrix * viewPosition;

		float worldSize = aSize > 0.0 ? aSize * 3.0 : 0.01;
		float depth = max(-viewPosition.z, 1e-4);
		float px = uProjectionMatrix[1][1] * worldSize * uViewportHeight / depth;
		gl_PointSize = clamp(px * uPointSize, 1.0, 128.0);
		vColor = aColor;
	}
`

const fsSource = `#version 300 es
	precision mediump float;
	in lowp vec4 vColor;
	out lowp vec4 outColor;

	void main(void) {
		vec2 d = gl_PointCoord * 2.0 - 1.0;
		float r2 = dot(d, d);
		if (r2 > 1.0) {
			discard;
		}
		float a = vColor.a * exp(-4.0 * r2);
		if (a < 0.02) {
			discard;
		}
		outColor = vec4(vColor.rgb, a);
	}
`

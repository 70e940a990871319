// Package roi estimates the economics of a hypothetical rooftop solar installation.
//
// The model is a fixed formula chain: installed capacity from area and panel efficiency,
// yearly output from full-sun-equivalent hours, savings from a flat electricity price,
// and a payback period from installation cost over yearly savings.
package roi

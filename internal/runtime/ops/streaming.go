package ops

import (
	"fmt"

	"github.com/example/go-pocket-tts/internal/runtime/tensor"
)

// Conv1DLeftPad runs Conv1D after zero-padding the input on the left by
// leftPad frames. Streaming conv layers use this to reproduce the causal
// padding a non-streaming forward pass would have applied, without needing
// the caller to materialize the padded tensor themselves.
func Conv1DLeftPad(input, kernel, bias *tensor.Tensor, stride, leftPad, dilation, groups int64) (*tensor.Tensor, error) {
	if leftPad <= 0 {
		return Conv1D(input, kernel, bias, stride, 0, dilation, groups)
	}

	shape := input.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("ops: Conv1DLeftPad requires rank-3 input, got %v", shape)
	}

	pad, err := tensor.Zeros([]int64{shape[0], shape[1], leftPad})
	if err != nil {
		return nil, err
	}

	padded, err := tensor.Concat([]*tensor.Tensor{pad, input}, 2)
	if err != nil {
		return nil, err
	}

	return Conv1D(padded, kernel, bias, stride, 0, dilation, groups)
}

// ConvTranspose1DRightTrim runs ConvTranspose1D then drops the trailing trim
// frames from the output. Streaming transpose-conv layers overproduce by
// exactly kernelSize-stride frames per step; trimming keeps successive
// streaming chunks butted end to end instead of overlapping.
func ConvTranspose1DRightTrim(input, kernel, bias *tensor.Tensor, stride, padding, outputPadding, dilation, groups, trim int64) (*tensor.Tensor, error) {
	out, err := ConvTranspose1D(input, kernel, bias, stride, padding, outputPadding, dilation, groups)
	if err != nil {
		return nil, err
	}

	return trimRight(out, trim)
}

// ConvTranspose1DPrePackedRightTrim is ConvTranspose1DRightTrim using a
// pre-packed kernel (see RepackConvTransposeKernel); only valid for groups=1.
func ConvTranspose1DPrePackedRightTrim(input, kernel, bias *tensor.Tensor, kernelT []float32, stride, padding, outputPadding, dilation, groups, trim int64) (*tensor.Tensor, error) {
	out, err := ConvTranspose1DPrePacked(input, kernel, bias, kernelT, stride, padding, outputPadding, dilation, groups)
	if err != nil {
		return nil, err
	}

	return trimRight(out, trim)
}

func trimRight(t *tensor.Tensor, trim int64) (*tensor.Tensor, error) {
	if trim <= 0 {
		return t, nil
	}

	shape := t.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("ops: right trim requires rank-3 tensor, got %v", shape)
	}

	length := shape[2] - trim
	if length < 0 {
		return nil, fmt.Errorf("ops: right trim %d exceeds axis length %d", trim, shape[2])
	}

	return t.Narrow(2, 0, length)
}

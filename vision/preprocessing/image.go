package preprocessing

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/tsawler/go-marker/tensor"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// LoadImageTensor decodes the image at path into a CHW float32 tensor
// with values in [0, 1]. channels must be 3 (RGB) or 1 (grayscale, used
// for masks; color images are converted by luminance).
func LoadImageTensor(path string, channels int) (*tensor.Tensor, error) {
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("unsupported channel count %d: must be 1 or 3", channels)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %v", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %v", path, err)
	}

	return ImageToTensor(img, channels)
}

// ImageToTensor converts a decoded image to a CHW float32 tensor with
// values in [0, 1].
func ImageToTensor(img image.Image, channels int) (*tensor.Tensor, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has empty bounds %v", bounds)
	}

	result, err := tensor.Zeros([]int{channels, height, width})
	if err != nil {
		return nil, err
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	plane := height * width
	for y := 0; y < height; y++ {
		row := rgba.PixOffset(rgba.Rect.Min.X, rgba.Rect.Min.Y+y)
		for x := 0; x < width; x++ {
			pix := rgba.Pix[row+x*4 : row+x*4+4]
			idx := y*width + x
			if channels == 3 {
				result.Data[idx] = float32(pix[0]) / 255.0
				result.Data[plane+idx] = float32(pix[1]) / 255.0
				result.Data[2*plane+idx] = float32(pix[2]) / 255.0
			} else {
				// ITU-R BT.601 luminance
				lum := 0.299*float64(pix[0]) + 0.587*float64(pix[1]) + 0.114*float64(pix[2])
				result.Data[idx] = float32(lum / 255.0)
			}
		}
	}

	return result, nil
}

// TensorToImage converts a single-channel spatial tensor of values in
// [0, 1] to an 8-bit grayscale image. Accepts [H, W], [1, H, W] and
// [1, 1, H, W] shapes.
func TensorToImage(t *tensor.Tensor) (*image.Gray, error) {
	dims := len(t.Shape)
	if dims < 2 || dims > 4 {
		return nil, fmt.Errorf("expected a 2D, 3D or 4D tensor, got shape %v", t.Shape)
	}
	height, width := t.Shape[dims-2], t.Shape[dims-1]
	if t.NumElems != height*width {
		return nil, fmt.Errorf("expected a single-channel tensor, got shape %v", t.Shape)
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := t.Data[y*width+x]
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return img, nil
}

// WriteMaskPNG renders a single-channel probability tensor as a
// grayscale PNG at path.
func WriteMaskPNG(t *tensor.Tensor, path string) error {
	img, err := TensorToImage(t)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", path, err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode %s: %v", path, err)
	}
	return nil
}

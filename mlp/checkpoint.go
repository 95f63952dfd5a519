package mlp

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Checkpoint file layout, little-endian throughout:
//
//	magic     [4]byte "LTFP"
//	version   uint32
//	nameLen   uint32, followed by nameLen bytes of checkpoint name
//	inputSize uint32
//	layers    uint32
//	per layer:
//	  outSize uint32
//	  act     uint32
//	  weights outSize*inSize fp16 values, row-major
//	  bias    outSize fp16 values
//
// Weights are stored as fp16, halving artifact size at a precision loss
// the tanh policy is insensitive to.
const (
	checkpointMagic   = "LTFP"
	checkpointVersion = 1

	// maxLayerWidth bounds a single dimension read from a checkpoint so
	// a corrupt file cannot drive huge allocations
	maxLayerWidth = 1 << 16
)

// SaveCheckpoint writes the network's weights and metadata to w
func (n *Network) SaveCheckpoint(w io.Writer) error {

	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(checkpointMagic); err != nil {
		return err
	}

	if err := writeU32(bw, checkpointVersion); err != nil {
		return err
	}

	if err := writeU32(bw, uint32(len(n.checkpoint))); err != nil {
		return err
	}

	if _, err := bw.WriteString(n.checkpoint); err != nil {
		return err
	}

	if err := writeU32(bw, uint32(n.inputSize)); err != nil {
		return err
	}

	if err := writeU32(bw, uint32(len(n.layers))); err != nil {
		return err
	}

	prev := n.inputSize

	for _, l := range n.layers {

		if err := writeU32(bw, uint32(l.out)); err != nil {
			return err
		}

		if err := writeU32(bw, uint32(l.act)); err != nil {
			return err
		}

		for r := 0; r < l.out; r++ {
			for c := 0; c < prev; c++ {
				bits := f32ToF16(float32(l.weights.At(r, c)))

				if err := binary.Write(bw, binary.LittleEndian, bits); err != nil {
					return err
				}
			}
		}

		for r := 0; r < l.out; r++ {
			bits := f32ToF16(float32(l.bias.AtVec(r)))

			if err := binary.Write(bw, binary.LittleEndian, bits); err != nil {
				return err
			}
		}

		prev = l.out
	}

	return bw.Flush()
}

// LoadCheckpoint reads a network from a checkpoint stream
func LoadCheckpoint(r io.Reader) (*Network, error) {

	br := bufio.NewReader(r)

	magic := make([]byte, len(checkpointMagic))

	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("error reading checkpoint magic: %w", err)
	}

	if string(magic) != checkpointMagic {
		return nil, fmt.Errorf("not a policy checkpoint, bad magic %q", magic)
	}

	version, err := readU32(br)

	if err != nil {
		return nil, err
	}

	if version != checkpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", version)
	}

	nameLen, err := readU32(br)

	if err != nil {
		return nil, err
	}

	if nameLen > maxLayerWidth {
		return nil, fmt.Errorf("checkpoint name length %d out of range", nameLen)
	}

	nameBuf := make([]byte, nameLen)

	if _, err := io.ReadFull(br, nameBuf); err != nil {
		return nil, fmt.Errorf("error reading checkpoint name: %w", err)
	}

	inputSize, err := readU32(br)

	if err != nil {
		return nil, err
	}

	layerCount, err := readU32(br)

	if err != nil {
		return nil, err
	}

	if inputSize == 0 || inputSize > maxLayerWidth {
		return nil, fmt.Errorf("checkpoint input size %d out of range", inputSize)
	}

	if layerCount == 0 || layerCount > 64 {
		return nil, fmt.Errorf("checkpoint layer count %d out of range", layerCount)
	}

	specs := make([]LayerSpec, 0, layerCount)
	prev := int(inputSize)

	for i := uint32(0); i < layerCount; i++ {

		outSize, err := readU32(br)

		if err != nil {
			return nil, err
		}

		if outSize == 0 || outSize > maxLayerWidth {
			return nil, fmt.Errorf("layer %d output size %d out of range", i, outSize)
		}

		act, err := readU32(br)

		if err != nil {
			return nil, err
		}

		if act > uint32(ActReLU) {
			return nil, fmt.Errorf("layer %d has unknown activation %d", i, act)
		}

		weights := make([][]float32, outSize)

		for r := range weights {
			row := make([]float32, prev)

			for c := range row {
				bits, err := readU16(br)

				if err != nil {
					return nil, fmt.Errorf("error reading layer %d weights: %w", i, err)
				}

				row[c] = f16ToF32(bits)
			}

			weights[r] = row
		}

		bias := make([]float32, outSize)

		for r := range bias {
			bits, err := readU16(br)

			if err != nil {
				return nil, fmt.Errorf("error reading layer %d bias: %w", i, err)
			}

			bias[r] = f16ToF32(bits)
		}

		specs = append(specs, LayerSpec{
			Weights: weights,
			Bias:    bias,
			Act:     Activation(act),
		})

		prev = int(outSize)
	}

	return NewNetwork(string(nameBuf), int(inputSize), specs...)
}

// SaveCheckpointFile writes the network to a checkpoint file at path
func (n *Network) SaveCheckpointFile(path string) error {

	f, err := os.Create(path)

	if err != nil {
		return fmt.Errorf("error creating checkpoint file: %w", err)
	}

	if err := n.SaveCheckpoint(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// LoadCheckpointFile reads a network from the checkpoint file at path
func LoadCheckpointFile(path string) (*Network, error) {

	f, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("error opening checkpoint file: %w", err)
	}

	defer f.Close()

	return LoadCheckpoint(f)
}

func writeU32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU16(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

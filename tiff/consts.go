package tiff

// Byte order markers followed by the magic number 42.
const (
	leHeader = "II\x2A\x00"
	beHeader = "MM\x00\x2A"

	headerSize = 8
	entryLen   = 12
)

// Field types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
)

// Tags.
const (
	tNewSubfileType            = 254
	tImageWidth                = 256
	tImageLength               = 257
	tBitsPerSample             = 258
	tCompression               = 259
	tPhotometricInterpretation = 262
	tFillOrder                 = 266
	tStripOffsets              = 273
	tSamplesPerPixel           = 277
	tRowsPerStrip              = 278
	tStripByteCounts           = 279
	tXResolution               = 282
	tYResolution               = 283
	tPlanarConfiguration       = 284
	tResolutionUnit            = 296
	tSoftware                  = 305
	tPredictor                 = 317
	tColorMap                  = 320
	tTileWidth                 = 322
	tTileLength                = 323
	tTileOffsets               = 324
	tTileByteCounts            = 325
	tInkSet                    = 332
	tExtraSamples              = 338
	tSampleFormat              = 339
	tYCbCrSubSampling          = 530
)

// Compression schemes.
const (
	cNone       = 1
	cG3         = 3
	cG4         = 4
	cLZW        = 5
	cJPEGOld    = 6
	cJPEG       = 7
	cDeflate    = 8
	cPackBits   = 32773
	cDeflateOld = 32946
	cZstd       = 50000
)

// Photometric interpretations.
const (
	pWhiteIsZero = 0
	pBlackIsZero = 1
	pRGB         = 2
	pPaletted    = 3
	pCMYK        = 5
	pYCbCr       = 6
	pCIELab      = 8
)

// Predictor values.
const (
	prNone       = 1
	prHorizontal = 2
)

// ExtraSamples values.
const (
	esUnspecified  = 0
	esAssociated   = 1
	esUnassociated = 2
)

// Resolution units.
const (
	resPerInch = 2
)
